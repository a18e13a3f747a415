package utils

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestRandomToken(t *testing.T) {
	a, err := RandomToken()
	if err != nil {
		t.Fatalf("RandomToken() error = %v", err)
	}
	b, _ := RandomToken()

	if a == b {
		t.Error("two tokens should differ")
	}
	if len(a) != 43 {
		t.Errorf("expected 43 url-safe chars, got %d", len(a))
	}
	if strings.ContainsAny(a, "+/=") {
		t.Errorf("token %q is not url-safe", a)
	}
}

func TestHashToken(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Error("hash should be deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Error("different inputs should hash differently")
	}
	if len(HashToken("abc")) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(HashToken("abc")))
	}
}

func TestRandomPassword(t *testing.T) {
	pw, err := RandomPassword(12)
	if err != nil {
		t.Fatalf("RandomPassword() error = %v", err)
	}
	if len(pw) != 12 {
		t.Errorf("expected length 12, got %d", len(pw))
	}
	for _, r := range pw {
		if !strings.ContainsRune(passwordAlphabet, r) {
			t.Errorf("unexpected character %q", r)
		}
	}
}

func TestContractNumber(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	n := ContractNumber(now)
	if !regexp.MustCompile(`^CON-20240309-[0-9A-F]{8}$`).MatchString(n) {
		t.Errorf("unexpected contract number %q", n)
	}
}

func TestInvoiceNumber(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	n := InvoiceNumber(now)
	if !regexp.MustCompile(`^INV-20240309140506-[0-9A-F]{6}$`).MatchString(n) {
		t.Errorf("unexpected invoice number %q", n)
	}
	if InvoiceNumber(now) == n {
		t.Error("invoice numbers generated in the same second should still differ")
	}
}
