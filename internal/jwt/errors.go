package jwt

import "errors"

// Errores de verificación. Ningún error de la librería jwt sale de este
// paquete sin traducir a uno de estos.
var (
	ErrMalformed = errors.New("jwt: malformed credential")
	ErrExpired   = errors.New("jwt: credential expired")
	ErrWrongKind = errors.New("jwt: wrong credential kind")
	ErrRevoked   = errors.New("jwt: credential revoked")

	// ErrRevocationCheckUnavailable: la credencial es estructuralmente válida
	// pero el denylist no respondió. Nunca equivale a ErrRevoked.
	ErrRevocationCheckUnavailable = errors.New("jwt: revocation check unavailable")

	// ErrIdentityGone: rotate con un refresh válido de una cuenta que ya no existe.
	ErrIdentityGone = errors.New("jwt: identity no longer exists")
)
