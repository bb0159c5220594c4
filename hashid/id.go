package hashid

import (
	"crypto/sha256"

	"github.com/google/uuid"
)

// NewID mints a new random identifier for any store row.
func NewID() string {
	return uuid.NewString()
}

// NewIDFromSeed deterministically derives an identifier from seed parts,
// useful for tests and for idempotent re-runs that must produce the same
// ids given the same inputs. It is a version-5 (SHA-1 namespaced) UUID over
// a SHA-256 of the parts, each prefixed by a zero byte (so ("ab", "c") and
// ("a", "bc") mint different ids); the same parts always mint the same id
// without a central counter.
func NewIDFromSeed(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	sum := h.Sum(nil)
	return uuid.NewSHA1(uuid.Nil, sum).String()
}

// IsValidID reports whether s parses as a UUID.
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
