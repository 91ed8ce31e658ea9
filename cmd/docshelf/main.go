// Command docshelf manipulates documents in a docshelf table and serves the
// HTTP API.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
