package proofchain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/louisbranch/proving.grounds/internal/platform/config"
	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
)

const (
	attestationIssuer    = "proving.grounds"
	defaultAttestationID = "v1"
	minAttestationKey    = 32
)

// Attestor is the reference Backend. It vouches for each step by signing
// the layer, step number, state hash and previous digest as an HS256 JWT
// whose kid header names the signing key.
type Attestor struct {
	keys        map[string][]byte
	activeKeyID string
	now         func() time.Time
}

type certificateClaims struct {
	jwt.RegisteredClaims
	Layer string `json:"layer"`
	Step  uint64 `json:"step"`
	State string `json:"state"`
	Prev  string `json:"prev,omitempty"`
}

// NewAttestor builds an attestor signing with activeKeyID and verifying with
// any key in keys.
func NewAttestor(keys map[string][]byte, activeKeyID string) (*Attestor, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("attestation keys are required")
	}
	activeKeyID = strings.TrimSpace(activeKeyID)
	if activeKeyID == "" {
		return nil, fmt.Errorf("active attestation key id is required")
	}
	if _, ok := keys[activeKeyID]; !ok {
		return nil, fmt.Errorf("active attestation key id is not configured")
	}
	for id, key := range keys {
		if len(key) < minAttestationKey {
			return nil, fmt.Errorf("attestation key %q must be at least %d bytes", id, minAttestationKey)
		}
	}
	return &Attestor{keys: keys, activeKeyID: activeKeyID, now: time.Now}, nil
}

// AttestorFromEnv loads base64 attestation keys from ARENA_ATTESTATION_KEYS
// ("id=base64,...") or ARENA_ATTESTATION_KEY.
func AttestorFromEnv() (*Attestor, error) {
	set, err := config.LoadKeySet("ARENA_ATTESTATION_", defaultAttestationID)
	if err != nil {
		return nil, err
	}
	decoded := make(map[string][]byte, len(set.Values))
	for id, value := range set.Values {
		key, err := decodeBase64(value)
		if err != nil {
			return nil, fmt.Errorf("attestation key %q: %w", id, err)
		}
		decoded[id] = key
	}
	return NewAttestor(decoded, set.ActiveID)
}

// ActiveKeyID is the id new certificates are signed with.
func (a *Attestor) ActiveKeyID() string {
	return a.activeKeyID
}

// Issue signs a certificate.
func (a *Attestor) Issue(layer string, step uint64, state field.Element, prev string) (Certificate, error) {
	claims := certificateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   attestationIssuer,
			Subject:  layer,
			IssuedAt: jwt.NewNumericDate(a.now().UTC()),
		},
		Layer: layer,
		Step:  step,
		State: field.Decimal(state),
		Prev:  prev,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = a.activeKeyID
	signed, err := token.SignedString(a.keys[a.activeKeyID])
	if err != nil {
		return Certificate{}, fmt.Errorf("sign certificate: %w", err)
	}
	return Certificate{Layer: layer, Step: step, State: state, Prev: prev, Token: signed}, nil
}

// Verify checks the token signature under its kid and that the token claims
// are exactly the certificate's fields.
func (a *Attestor) Verify(cert Certificate) error {
	var parsed certificateClaims
	_, err := jwt.ParseWithClaims(cert.Token, &parsed, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		key, ok := a.keys[kid]
		if !ok {
			return nil, fmt.Errorf("attestation key id %q is unknown", kid)
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return mapJWTError(err)
	}
	if parsed.Issuer != attestationIssuer {
		return apperrors.New(apperrors.CodeIntegrity, "certificate issuer mismatch")
	}
	state, err := field.ParseDecimal(parsed.State)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIntegrity, "certificate state is malformed", err)
	}
	if parsed.Layer != cert.Layer || parsed.Step != cert.Step || parsed.Prev != cert.Prev || !field.Equal(state, cert.State) {
		return apperrors.New(apperrors.CodeIntegrity, "certificate fields do not match the signed claims")
	}
	return nil
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.New(apperrors.CodeIntegrity, "certificate signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.Wrap(apperrors.CodeIntegrity, "certificate is unverifiable", err)
	}
	return apperrors.Wrap(apperrors.CodeIntegrity, "certificate is invalid", err)
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
