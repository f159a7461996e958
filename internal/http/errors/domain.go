package errors

import (
	stderrors "errors"
	"strings"

	"github.com/dropDatabas3/kidplay/internal/gateway"
	"github.com/dropDatabas3/kidplay/internal/jwt"
	"github.com/dropDatabas3/kidplay/internal/watch"
)

// Map traduce un error de dominio al AppError correspondiente. Es el único
// lugar donde la capa HTTP conoce los sentinels de los paquetes de dominio.
func Map(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var pe *gateway.PolicyError
	switch {
	// credenciales
	case stderrors.Is(err, gateway.ErrMissingCredential):
		return ErrTokenMissing
	case stderrors.Is(err, jwt.ErrExpired):
		return ErrTokenExpired
	case stderrors.Is(err, jwt.ErrRevoked):
		return ErrTokenRevoked
	case stderrors.Is(err, jwt.ErrWrongKind):
		return ErrTokenWrongKind
	case stderrors.Is(err, jwt.ErrMalformed):
		return ErrTokenMalformed
	case stderrors.Is(err, jwt.ErrIdentityGone):
		return ErrIdentityGone
	case stderrors.Is(err, gateway.ErrInvalidCredentials):
		return ErrInvalidCredentials

	// cuentas
	case stderrors.As(err, &pe):
		return ErrPasswordTooWeak.WithDetail(strings.Join(pe.Reasons, ","))
	case stderrors.Is(err, gateway.ErrEmailTaken):
		return ErrEmailAlreadyInUse
	case stderrors.Is(err, gateway.ErrInvalidInput):
		return ErrInvalidFormat.WithCause(err)

	// perfiles y sesiones
	case stderrors.Is(err, gateway.ErrForbidden):
		return ErrForbidden
	case stderrors.Is(err, gateway.ErrUnknownChip):
		return ErrUnknownChip
	case stderrors.Is(err, gateway.ErrChipTaken):
		return ErrChipAlreadyBound
	case stderrors.Is(err, watch.ErrProfileNotFound):
		return ErrProfileNotFound
	case stderrors.Is(err, watch.ErrSessionNotFound):
		return ErrSessionNotFound
	}
	return ErrInternalServerError.WithCause(err)
}
