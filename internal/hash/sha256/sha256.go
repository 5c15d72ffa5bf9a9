// Package sha256 derives cache fingerprints with SHA-256.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/jobscout/internal/jobs"
)

// Hash hashes the input and returns a hex digest.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns the cache key for q. The query is encoded as a JSON
// object with sorted keys so equal queries always hash identically.
func Fingerprint(q jobs.Query) (string, error) {
	canonical, err := json.Marshal(map[string]string{
		"career":   q.Career,
		"location": q.Location,
	})
	if err != nil {
		return "", fmt.Errorf("encode query: %w", err)
	}
	return Hash(canonical), nil
}
