package keys

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
)

func mustKey(t *testing.T) PrivateKey {
	t.Helper()
	k, err := GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return k
}

func TestSignVerify(t *testing.T) {
	k := mustKey(t)
	msg := []field.Element{field.FromUint64(1), field.FromUint64(0), field.FromUint64(42), field.FromUint64(7)}

	sig, err := k.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !k.Public().Verify(sig, msg) {
		t.Fatal("expected signature to verify")
	}

	tampered := append([]field.Element(nil), msg...)
	tampered[2] = field.FromUint64(43)
	if k.Public().Verify(sig, tampered) {
		t.Fatal("expected tampered message to fail")
	}

	other := mustKey(t)
	if other.Public().Verify(sig, msg) {
		t.Fatal("expected wrong signer to fail")
	}

	var garbage Signature
	if k.Public().Verify(garbage, msg) {
		t.Fatal("expected zero signature to fail")
	}
}

func TestVerifyWithZeroKeyFails(t *testing.T) {
	k := mustKey(t)
	msg := []field.Element{field.One()}
	sig, err := k.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	var zero PublicKey
	if zero.Verify(sig, msg) {
		t.Fatal("expected zero key to fail")
	}
	if !zero.IsZero() {
		t.Fatal("expected zero key to report zero")
	}
}

func TestPublicKeyBase58RoundTrip(t *testing.T) {
	pub := mustKey(t).Public()
	parsed, err := ParsePublicKey(pub.String())
	if err != nil {
		t.Fatalf("parse public key: %v", err)
	}
	if !parsed.Equal(pub) {
		t.Fatal("expected round trip to preserve key")
	}
	if !field.Equal(parsed.Commitment(), pub.Commitment()) {
		t.Fatal("expected same commitment")
	}
}

func TestParsePublicKeyRejects(t *testing.T) {
	tests := []string{"", "0OIl", "2g"}
	for _, s := range tests {
		if _, err := ParsePublicKey(s); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("expected invalid key for %q, got %v", s, err)
		}
	}
}

func TestPrivateKeyRoundTrip(t *testing.T) {
	k := mustKey(t)
	parsed, err := ParsePrivateKey(k.String())
	if err != nil {
		t.Fatalf("parse private key: %v", err)
	}
	if !parsed.Public().Equal(k.Public()) {
		t.Fatal("expected same public key")
	}
	if parsed.Scalar().Cmp(k.Scalar()) != 0 {
		t.Fatal("expected same scalar")
	}

	msg := []field.Element{field.FromUint64(9)}
	sig, err := parsed.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !k.Public().Verify(sig, msg) {
		t.Fatal("expected parsed key to sign for original public key")
	}
}

func TestJSONEncodesBase58(t *testing.T) {
	k := mustKey(t)
	sig, err := k.Sign([]field.Element{field.One()})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	payload := struct {
		Player    PublicKey `json:"player"`
		Signature Signature `json:"signature"`
	}{k.Public(), sig}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Player    PublicKey `json:"player"`
		Signature Signature `json:"signature"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Player.Equal(k.Public()) || decoded.Signature != sig {
		t.Fatal("expected JSON round trip to preserve key and signature")
	}
}
