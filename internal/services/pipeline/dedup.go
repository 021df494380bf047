package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ContentHash computes the stable dedup hash for a job candidate from the
// company and the normalized title/location pair. The same posting surfacing
// at two URLs produces the same hash. Returns "" when no title is known, so
// hash-less records never collide with each other.
func ContentHash(companyID, title, location string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	if title == "" {
		return ""
	}
	location = strings.ToLower(strings.TrimSpace(location))

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s", companyID, title, location)))
	return hex.EncodeToString(sum[:])
}
