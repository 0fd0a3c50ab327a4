package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasherRoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	digest, err := h.Hash("Secret123!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(digest, "$2") {
		t.Fatalf("unexpected digest format: %q", digest)
	}
	if !h.Verify("Secret123!", digest) {
		t.Fatal("correct password rejected")
	}
	if h.Verify("Secret123", digest) {
		t.Fatal("wrong password accepted")
	}
	if h.Verify("", digest) {
		t.Fatal("empty password accepted")
	}
}

func TestHasherDistinctDigests(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	a, _ := h.Hash("same-password")
	b, _ := h.Hash("same-password")
	if a == b {
		t.Fatal("expected salted digests to differ")
	}
}

func TestHasherEmptyPassword(t *testing.T) {
	if _, err := NewHasher(bcrypt.MinCost).Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestHasherCostDefaulted(t *testing.T) {
	for _, cost := range []int{-1, 0} {
		digest, err := NewHasher(cost).Hash("x")
		if err != nil {
			t.Fatalf("cost %d: %v", cost, err)
		}
		got, err := bcrypt.Cost([]byte(digest))
		if err != nil {
			t.Fatalf("cost %d: read back cost: %v", cost, err)
		}
		if got != DefaultHashCost {
			t.Fatalf("cost %d: digest cost = %d, want %d", cost, got, DefaultHashCost)
		}
	}
}

func TestHasherVerifyGarbageDigest(t *testing.T) {
	if NewHasher(bcrypt.MinCost).Verify("x", "not-a-bcrypt-digest") {
		t.Fatal("garbage digest accepted")
	}
}
