// Package audit emite eventos de seguridad de las cuentas (altas, logins,
// revocaciones, accesos degradados) a un logger dedicado.
package audit

import (
	"context"

	"github.com/dropDatabas3/kidplay/internal/observability/logger"
	"github.com/dropDatabas3/kidplay/internal/util"
	"go.uber.org/zap"
)

// Eventos conocidos.
const (
	EventRegister       = "identity.register"
	EventLogin          = "identity.login"
	EventLoginFailed    = "identity.login_failed"
	EventLogout         = "credential.logout"
	EventDegradedAccess = "credential.degraded_access"
	EventChipBound      = "profile.chip_bound"
)

// Email es el campo de email ya enmascarado.
func Email(v string) zap.Field { return zap.String("email", util.MaskEmail(v)) }

// Log escribe el evento con el request_id del logger de ctx.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	logger.From(ctx).Named("audit").Info(event, append([]zap.Field{zap.String("event", event)}, fields...)...)
}
