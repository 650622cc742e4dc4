package recorder

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gowebpki/jcs"
)

// HashContent returns the hex SHA-256 of content, or "" when empty.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// HashPayload returns the hex SHA-256 of the RFC 8785 canonical form of a
// JSON payload. Whitespace and key order do not change the result, so a
// payload re-indented by an export still verifies.
func HashPayload(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", nil
	}
	canonical, err := jcs.Transform(payload)
	if err != nil {
		return "", err
	}
	return HashContent(canonical), nil
}
