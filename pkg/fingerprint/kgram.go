package fingerprint

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// HashKGrams returns the xxhash64 of every k-byte window of text, in order.
// The hash is unseeded, so equal windows hash equally across documents and runs.
func HashKGrams(text string, k int) ([]uint64, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: noise threshold %d must be at least 1", ErrInvalidThreshold, k)
	}
	if len(text) < k {
		return nil, fmt.Errorf("%w: canonical text has %d bytes, shorter than noise threshold %d",
			ErrDegenerateInput, len(text), k)
	}

	hashes := make([]uint64, len(text)-k+1)
	for i := range hashes {
		hashes[i] = xxhash.Sum64String(text[i : i+k])
	}
	return hashes, nil
}
