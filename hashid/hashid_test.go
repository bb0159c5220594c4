package hashid

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashKnownVectors(t *testing.T) {
	if got := HashText("hello"); got != "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("hash(hello) = %s", got)
	}
	if got := HashText(""); got != "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("hash(\"\") = %s", got)
	}
}

func TestCompositeHashEquivalence(t *testing.T) {
	a, b, c := []byte("alpha"), []byte("beta"), []byte("gamma")
	got := CompositeHash(a, b, c)
	want := Hash([]byte("alphabetagamma"))
	if got != want {
		t.Errorf("CompositeHash = %s, want %s", got, want)
	}
}

func TestIsValidHash(t *testing.T) {
	if !IsValidHash(HashText("x")) {
		t.Error("expected valid hash to validate")
	}
	cases := []string{"", "sha256:abc", "md5:" + HashText("x")[7:], "sha256:" + "Z", HashText("x") + "x"}
	for _, c := range cases {
		if IsValidHash(c) {
			t.Errorf("expected %q to be invalid", c)
		}
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	b := []byte("round trip content")
	h := Hash(b)
	if !Verify(b, h) {
		t.Fatal("expected verify to succeed for unmodified content")
	}
	flipped := append([]byte(nil), b...)
	flipped[0] ^= 0xFF
	if Verify(flipped, h) {
		t.Fatal("expected verify to fail for flipped content")
	}
}

func TestVerifyDetailed(t *testing.T) {
	b := []byte("content")
	h := Hash(b)
	res := VerifyDetailed(b, h)
	if !res.Valid || !res.FormatValid {
		t.Fatalf("expected valid+well-formed, got %+v", res)
	}

	res = VerifyDetailed(b, "not-a-hash")
	if res.Valid || res.FormatValid {
		t.Fatalf("expected malformed expected to report FormatValid=false, got %+v", res)
	}

	res = VerifyDetailed(b, Hash([]byte("other")))
	if res.Valid || !res.FormatValid {
		t.Fatalf("expected well-formed-but-mismatched, got %+v", res)
	}
}

func TestHashFileRequiresAbsolutePath(t *testing.T) {
	if _, err := HashFile("relative/path.txt"); err == nil {
		t.Fatal("expected error for relative path")
	}
}

func TestHashFileMatchesHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	content := []byte("file content for hashing")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := Hash(content); got != want {
		t.Errorf("HashFile = %s, want %s", got, want)
	}
}

func TestHashFileRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if _, err := HashFile(dir); err == nil {
		t.Fatal("expected error for directory path")
	}
}

func TestNewIDFromSeedDeterministic(t *testing.T) {
	a := NewIDFromSeed("doc-1", "chunk-3")
	b := NewIDFromSeed("doc-1", "chunk-3")
	if a != b {
		t.Errorf("expected same seed to produce same id, got %s vs %s", a, b)
	}
	c := NewIDFromSeed("doc-1", "chunk-4")
	if a == c {
		t.Error("expected different seed to produce different id")
	}
	if !IsValidID(a) {
		t.Errorf("expected %s to be a valid UUID", a)
	}
}

func TestNewIDUnique(t *testing.T) {
	if NewID() == NewID() {
		t.Error("expected NewID to mint distinct ids")
	}
}
