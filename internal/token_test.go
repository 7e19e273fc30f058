package internal

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestTokenRoundTrip(t *testing.T) {
	id := uuid.New()
	secret, err := NewSecret()
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}

	token := EncodeToken(id, secret)
	if strings.ContainsAny(token, "+/=") {
		t.Fatalf("token is not raw base64url: %q", token)
	}

	gotID, gotSecret, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gotID != id {
		t.Fatalf("id mismatch: %s != %s", gotID, id)
	}
	if gotSecret != secret {
		t.Fatal("secret mismatch")
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	for _, token := range []string{
		"",
		"not-base64!!!",
		"c2hvcnQ",
		EncodeToken(uuid.New(), [SecretSize]byte{}) + "AAAA",
	} {
		if _, _, err := DecodeToken(token); err == nil {
			t.Fatalf("expected decode failure for %q", token)
		}
	}
}

func TestHashSecretIsStable(t *testing.T) {
	secret, err := NewSecret()
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}
	if HashSecret(secret) != HashSecret(secret) {
		t.Fatal("hash not deterministic")
	}

	other, err := NewSecret()
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}
	if HashSecret(secret) == HashSecret(other) {
		t.Fatal("distinct secrets hashed equal")
	}
}
