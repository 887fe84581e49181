package cache

import (
	"strconv"
	"strings"
)

// Key kinds.
const (
	KindSession   = "session"
	KindReference = "ref"
)

// CacheKey identifies a cached value.
type CacheKey struct {
	// Kind separates the stores sharing one Redis database
	Kind string

	// PartnerID scopes the key to one account (0 when the subject already does)
	PartnerID int

	// Subject is the cached item (store key, referenceId)
	Subject string
}

// String generates a deterministic cache key string.
// Format: kaltura:kind:partner:subject
//
// Example:
//
//	kaltura:ref:123:lecture-2024-01
func (k CacheKey) String() string {
	parts := []string{"kaltura", k.Kind}

	if k.PartnerID > 0 {
		parts = append(parts, strconv.Itoa(k.PartnerID))
	}

	if k.Subject != "" {
		parts = append(parts, k.Subject)
	}

	return strings.Join(parts, ":")
}
