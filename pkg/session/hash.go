package session

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
)

// HashType names the digest an app token was created with.
type HashType string

const (
	HashSHA1   HashType = "SHA1"
	HashSHA256 HashType = "SHA256"
	HashSHA512 HashType = "SHA512"
	HashMD5    HashType = "MD5"
)

// DefaultHashType is used when none is configured.
const DefaultHashType = HashSHA256

// ParseHashType parses a hash type name (any case). Empty selects the default.
func ParseHashType(s string) (HashType, error) {
	if s == "" {
		return DefaultHashType, nil
	}
	ht := HashType(strings.ToUpper(s))
	if _, err := ht.new(); err != nil {
		return "", err
	}
	return ht, nil
}

func (h HashType) new() (hash.Hash, error) {
	switch h {
	case HashSHA1:
		return sha1.New(), nil
	case HashSHA256:
		return sha256.New(), nil
	case HashSHA512:
		return sha512.New(), nil
	case HashMD5:
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", kaltura.ErrUnsupportedAlgorithm, string(h))
	}
}

// ComputeHash returns the hex digest of sessionID followed by token.
func ComputeHash(ht HashType, token, sessionID string) (string, error) {
	h, err := ht.new()
	if err != nil {
		return "", err
	}
	h.Write([]byte(sessionID))
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil)), nil
}
