package codec

import (
	"crypto/rand"
	"strconv"
	"time"
)

const (
	idAlphabet     = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idSuffixLength = 9
)

// NewID returns a document identity: the current Unix time in milliseconds
// followed by a fixed-length random alphanumeric suffix. Collisions are
// left to the primary key constraint.
func NewID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + randomSuffix(idSuffixLength)
}

// randomSuffix draws n characters uniformly from idAlphabet. Bytes at or
// above the largest multiple of the alphabet size are discarded.
func randomSuffix(n int) string {
	const limit = 256 - 256%len(idAlphabet)

	out := make([]byte, 0, n)
	buf := make([]byte, n+n/2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, idAlphabet[int(b)%len(idAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}
