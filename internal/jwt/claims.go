package jwt

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Kind distingue access de refresh. Se chequea en cada uso.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) Valid() bool { return k == KindAccess || k == KindRefresh }

// Claims es el payload firmado: {identityId, kind, jti, exp} + iat/iss.
// IdentityID es el único identificador de la cuenta; no hay "sub" aparte.
type Claims struct {
	IdentityID string `json:"identityId"`
	Kind       Kind   `json:"kind"`
	jwtv5.RegisteredClaims
}

// JTI es el identificador único de la credencial.
func (c *Claims) JTI() string { return c.ID }

// Expiry devuelve exp en UTC (zero si falta, cosa que Verify nunca deja pasar).
// NumericDate decodifica con time.Unix, que deja la zona Local.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time.UTC()
}

// Credential es una credencial recién emitida.
type Credential struct {
	Token      string
	Kind       Kind
	JTI        string
	IdentityID string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// ExpiresIn en segundos, relativo a IssuedAt.
func (c Credential) ExpiresIn() int64 {
	return int64(c.ExpiresAt.Sub(c.IssuedAt) / time.Second)
}
