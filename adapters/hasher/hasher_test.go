package hasher

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptUsesConfiguredCost(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)

	hash, err := h.Hash("sk_test_secret")
	if err != nil {
		t.Fatal(err)
	}

	cost, err := bcrypt.Cost(hash)
	if err != nil {
		t.Fatal(err)
	}
	if cost != bcrypt.MinCost {
		t.Errorf("cost = %d, want configured %d", cost, bcrypt.MinCost)
	}

	if !h.Compare(hash, "sk_test_secret") {
		t.Error("hash does not verify its input")
	}
	if h.Compare(hash, "sk_test_other") {
		t.Error("hash verified a different input")
	}
}

func TestBcryptCostOutOfRangeFallsBack(t *testing.T) {
	h := NewBcrypt(99)

	hash, err := h.Hash("x")
	if err != nil {
		t.Fatal(err)
	}
	cost, err := bcrypt.Cost(hash)
	if err != nil {
		t.Fatal(err)
	}
	if cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want default %d", cost, bcrypt.DefaultCost)
	}
}
