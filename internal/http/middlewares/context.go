package middlewares

import (
	"context"

	"github.com/dropDatabas3/kidplay/internal/gateway"
)

type ctxKey string

const (
	ctxPrincipalKey ctxKey = "principal"
	ctxRequestIDKey ctxKey = "request_id"
)

// WithPrincipal inyecta la identidad autenticada en el contexto.
func WithPrincipal(ctx context.Context, p gateway.Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, p)
}

// GetPrincipal obtiene la identidad autenticada. ok=false si RequireAuth no corrió.
func GetPrincipal(ctx context.Context) (gateway.Principal, bool) {
	p, ok := ctx.Value(ctxPrincipalKey).(gateway.Principal)
	return p, ok
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxRequestIDKey).(string)
	return s
}
