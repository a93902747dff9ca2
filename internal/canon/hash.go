package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainSchema prefixes slot table fingerprints. Bump the version suffix
// when the hashed layout changes.
const DomainSchema = "catom/schema/v1"

// Hash returns the hex SHA-256 of domain, a zero byte, and the canonical
// encoding of v. Equal values hash equally regardless of map order.
func Hash(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
