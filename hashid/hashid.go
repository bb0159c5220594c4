// Package hashid implements content addressing and identity minting for the
// provenance spine: SHA-256 content hashes in the "sha256:<hex64>" form,
// deterministic composite hashes over ordered parts, and hash verification.
package hashid

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
)

const prefix = "sha256:"

var hashPattern = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)

// Hash returns the content hash of b: "sha256:" followed by 64 lowercase
// hex digits.
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return prefix + hex.EncodeToString(sum[:])
}

// HashText is a convenience wrapper over Hash for string content.
func HashText(s string) string {
	return Hash([]byte(s))
}

// HashFile streams the file at path and returns its content hash. path must
// be absolute and must name a regular file.
func HashFile(path string) (string, error) {
	if !isAbs(path) {
		return "", fmt.Errorf("hashid: path must be absolute: %q", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("hashid: stat %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("hashid: not a regular file: %q", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashid: open %q: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, bufio.NewReader(f)); err != nil {
		return "", fmt.Errorf("hashid: read %q: %w", path, err)
	}
	return prefix + hex.EncodeToString(h.Sum(nil)), nil
}

// CompositeHash hashes the concatenation of parts in order, in a single
// pass. composite_hash([a,b,c]) == Hash(concat(a,b,c)) by construction,
// which lets streaming and buffered implementations agree.
func CompositeHash(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return prefix + hex.EncodeToString(h.Sum(nil))
}

// CompositeHashStrings is CompositeHash for string parts.
func CompositeHashStrings(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return prefix + hex.EncodeToString(h.Sum(nil))
}

// IsValidHash reports whether s has the exact "sha256:" + 64 lowercase hex
// digits shape.
func IsValidHash(s string) bool {
	return hashPattern.MatchString(s)
}

// Verify reports whether content hashes to expected. A malformed expected
// value simply fails to match; it never panics or errors.
func Verify(content []byte, expected string) bool {
	return Hash(content) == expected
}

// VerifyResult is the detailed outcome of VerifyDetailed, letting forensic
// callers distinguish tamper from corruption from a malformed hash string.
type VerifyResult struct {
	Valid       bool
	FormatValid bool
	Expected    string
	Computed    string
}

// VerifyDetailed computes content's hash and compares it to expected,
// reporting both the match outcome and whether expected was even
// well-formed.
func VerifyDetailed(content []byte, expected string) VerifyResult {
	computed := Hash(content)
	formatValid := IsValidHash(expected)
	return VerifyResult{
		Valid:       formatValid && computed == expected,
		FormatValid: formatValid,
		Expected:    expected,
		Computed:    computed,
	}
}

func isAbs(path string) bool {
	return len(path) > 0 && path[0] == '/'
}
