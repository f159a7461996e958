package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// KeySet mantiene una sola clave activa.
type KeySet struct {
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
	KID  string
	Alg  string // "EdDSA"
}

// NewEphemeralEd25519 genera una clave Ed25519 en memoria. Las credenciales
// firmadas con ella mueren con el proceso.
func NewEphemeralEd25519() (*KeySet, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return newKeySet(priv), nil
}

// KeySetFromSeed arma el KeySet desde un seed Ed25519 de 32 bytes en base64
// (std o url, con o sin padding).
func KeySetFromSeed(seedB64 string) (*KeySet, error) {
	seed, err := decodeB64(strings.TrimSpace(seedB64))
	if err != nil {
		return nil, fmt.Errorf("jwt: signing key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("jwt: signing key: want %d byte seed, got %d", ed25519.SeedSize, len(seed))
	}
	return newKeySet(ed25519.NewKeyFromSeed(seed)), nil
}

func newKeySet(priv ed25519.PrivateKey) *KeySet {
	pub := priv.Public().(ed25519.PublicKey)
	sum := sha256.Sum256(pub)
	return &KeySet{
		Priv: priv,
		Pub:  pub,
		KID:  base64.RawURLEncoding.EncodeToString(sum[:12]),
		Alg:  "EdDSA",
	}
}

func decodeB64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("invalid base64")
}

// ----- JWKS (serialización) -----

type jwk struct {
	Kty string `json:"kty"` // "OKP"
	Crv string `json:"crv"` // "Ed25519"
	Kid string `json:"kid"`
	Alg string `json:"alg"` // "EdDSA"
	Use string `json:"use"` // "sig"
	X   string `json:"x"`   // base64url(pub)
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// JWKSJSON devuelve el JWKS (solo la pública) en JSON.
func (k *KeySet) JWKSJSON() []byte {
	j := jwks{
		Keys: []jwk{{
			Kty: "OKP",
			Crv: "Ed25519",
			Kid: k.KID,
			Alg: k.Alg,
			Use: "sig",
			X:   base64.RawURLEncoding.EncodeToString(k.Pub),
		}},
	}
	b, _ := json.Marshal(j)
	return b
}
