package security

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
	"pgregory.net/rapid"
)

func TestPasswordHasherProperty(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	rapid.Check(t, func(t *rapid.T) {
		password := rapid.StringMatching(`[A-Za-z0-9!@#$%^&*]{8,40}`).Draw(t, "password")
		wrong := rapid.StringMatching(`[A-Za-z0-9]{8,40}`).Draw(t, "wrong")

		hash, err := h.Hash(password)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		if !h.Verify(password, hash) {
			t.Fatal("verify(password, hash(password)) must be true")
		}
		if wrong != password && h.Verify(wrong, hash) {
			t.Fatal("verify(wrong, hash(password)) must be false")
		}
	})
}

func TestPasswordHasherMalformedHash(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	if h.Verify("p@ssw0rd1", "not-a-bcrypt-hash") {
		t.Fatal("malformed hash must not verify")
	}
	h.VerifyDummy("anything")
}

func TestPasswordHasherClampsCost(t *testing.T) {
	if got := NewPasswordHasher(1).cost; got != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", got)
	}
}
