// Package attest signs induction plans so downstream consumers can check that
// a published or archived plan is the one the planner produced.
package attest

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gowebpki/jcs"

	"github.com/metro-depot/fleet/induction/internal/planner"
)

var ErrDigestMismatch = errors.New("attestation digest does not match plan")

// Canonical returns the RFC 8785 canonical JSON encoding of v.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return out, nil
}

// Digest is the hex sha256 of the canonical verdict list.
func Digest(verdicts []planner.Verdict) (string, error) {
	if verdicts == nil {
		verdicts = []planner.Verdict{}
	}
	b, err := Canonical(verdicts)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Claims are the signed contents of a plan attestation.
type Claims struct {
	PlanID       string `json:"plan_id"`
	PlanningDate string `json:"planning_date"`
	Digest       string `json:"digest"`
	Trainsets    int    `json:"trainsets"`
	Unfit        int    `json:"unfit"`
	Fit          int    `json:"fit"`
	Standby      int    `json:"standby"`
	jwt.RegisteredClaims
}

type Signer struct {
	key      ed25519.PrivateKey
	signerID string
	now      func() time.Time
}

// NewSignerFromB64 accepts a base64 ed25519 seed (32 bytes) or full private
// key (64 bytes).
func NewSignerFromB64(b64Key, signerID string) (*Signer, error) {
	keyBytes, err := base64.StdEncoding.DecodeString(b64Key)
	if err != nil {
		return nil, fmt.Errorf("decode signer private key: %w", err)
	}
	var key ed25519.PrivateKey
	switch len(keyBytes) {
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(keyBytes)
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(keyBytes)
	default:
		return nil, fmt.Errorf("invalid ed25519 key length: got %d want %d or %d", len(keyBytes), ed25519.SeedSize, ed25519.PrivateKeySize)
	}
	return NewSigner(key, signerID), nil
}

func NewSigner(key ed25519.PrivateKey, signerID string) *Signer {
	return &Signer{key: key, signerID: signerID, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Signer) SignerID() string { return s.signerID }

func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// Sign returns a compact JWS over the plan's claims.
func (s *Signer) Sign(fs planner.FleetStatus) (string, error) {
	digest, err := Digest(fs.Trainsets)
	if err != nil {
		return "", fmt.Errorf("digest plan: %w", err)
	}
	claims := Claims{
		PlanID:       fs.PlanID.String(),
		PlanningDate: fs.Summary.PlanningDate,
		Digest:       digest,
		Trainsets:    fs.Summary.TotalTrainsets,
		Unfit:        fs.Summary.Unfit,
		Fit:          fs.Summary.Fit,
		Standby:      fs.Summary.Standby,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   s.signerID,
			Subject:  fs.PlanID.String(),
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = s.signerID
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign attestation: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and that its digest matches the
// verdicts in fs.
func Verify(token string, pub ed25519.PublicKey, fs planner.FleetStatus) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse attestation: %w", err)
	}
	digest, err := Digest(fs.Trainsets)
	if err != nil {
		return nil, err
	}
	if claims.Digest != digest || claims.PlanID != fs.PlanID.String() {
		return nil, ErrDigestMismatch
	}
	return claims, nil
}
