package engine

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const idCharset = "0123456789abcdefghijklmnopqrstuvwxyz"

// randomSuffix returns n characters drawn from idCharset using a
// CSPRNG; collisions are handled by the caller's bounded retry rather
// than by making the suffix longer.
func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(idCharset)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate id suffix: %w", err)
		}
		buf[i] = idCharset[idx.Int64()]
	}
	return string(buf), nil
}

// generateTaskID builds a candidate id from the project prefix and a
// random 4-character suffix, e.g. "gr-4f2a".
func generateTaskID(prefix string) (string, error) {
	suffix, err := randomSuffix(4)
	if err != nil {
		return "", err
	}
	return prefix + "-" + suffix, nil
}

// generateGitRefID builds a candidate git-ref id, e.g. "gf-9c3d".
func generateGitRefID() (string, error) {
	suffix, err := randomSuffix(4)
	if err != nil {
		return "", err
	}
	return "gf-" + suffix, nil
}
