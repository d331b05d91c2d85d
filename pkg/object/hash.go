package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashObject computes the SHA-1 of the envelope "type len\0content". This is
// the addressing scheme Git hosting APIs use for every object type.
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha1.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// HashBlob returns the blob id the remote assigns to content. Content must be
// the raw file bytes; any re-encoding changes the id.
func HashBlob(content []byte) Hash {
	return HashObject(TypeBlob, content)
}

// ValidateHash checks that a hash is a 40-character lowercase hex string.
func ValidateHash(h Hash) error {
	s := strings.TrimSpace(string(h))
	if s == "" {
		return fmt.Errorf("hash is empty")
	}
	if len(s) != HashLength {
		return fmt.Errorf("hash length %d, expected %d", len(s), HashLength)
	}
	if s != strings.ToLower(s) {
		return fmt.Errorf("hash %q is not lowercase", s)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return fmt.Errorf("hash contains non-hex characters: %w", err)
	}
	return nil
}
