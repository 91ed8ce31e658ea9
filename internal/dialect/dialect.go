// Package dialect holds the engine-specific statement and error rules for
// each supported row store.
package dialect

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rzpsarthak13/docshelf/internal/core"
)

var (
	// dialectRegistry stores all registered dialects.
	dialectRegistry = make(map[string]core.Dialect)

	// registryMutex protects the registry from concurrent access.
	registryMutex sync.RWMutex
)

// Register registers a dialect. Called from each dialect's init().
func Register(d core.Dialect) {
	if d == nil {
		panic("dialect cannot be nil")
	}
	if d.Name() == "" {
		panic("dialect name cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := dialectRegistry[d.Name()]; exists {
		panic(fmt.Sprintf("dialect %q is already registered", d.Name()))
	}
	dialectRegistry[d.Name()] = d
}

// Get returns the dialect registered under name. "postgresql" is accepted as
// an alias for "postgres" and "sqlite3" for "sqlite".
func Get(name string) (core.Dialect, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "postgresql", "pg":
		key = "postgres"
	case "sqlite3":
		key = "sqlite"
	}

	registryMutex.RLock()
	d, ok := dialectRegistry[key]
	registryMutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", name)
	}
	return d, nil
}

// Names returns the registered dialect names in sorted order.
func Names() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	names := make([]string, 0, len(dialectRegistry))
	for n := range dialectRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// quote wraps name in q, doubling any embedded q.
func quote(name string, q string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}
