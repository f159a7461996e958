package middlewares

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/kidplay/internal/gateway"
	httperrors "github.com/dropDatabas3/kidplay/internal/http/errors"
	"github.com/dropDatabas3/kidplay/internal/http/helpers"
	"github.com/dropDatabas3/kidplay/internal/observability/logger"
)

// DegradedHeader se setea cuando el request pasó sin consulta al denylist.
const (
	DegradedHeader = "X-Auth-Degraded"
	DegradedValue  = "revocation-check-unavailable"
)

// Authenticator valida un access token.
type Authenticator interface {
	Authenticate(ctx context.Context, access string) (gateway.Principal, error)
}

// RequireAuth valida Authorization: Bearer <access> y deja el Principal en
// el contexto. Responde 401 con el código del fallo.
func RequireAuth(authn Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := authn.Authenticate(r.Context(), helpers.BearerToken(r))
			if err != nil {
				appErr := httperrors.Map(err)
				if appErr.HTTPStatus == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", `Bearer realm="kidplay", error="invalid_token"`)
				}
				httperrors.WriteError(w, appErr)
				return
			}
			if p.Degraded {
				w.Header().Set(DegradedHeader, DegradedValue)
			}

			ctx := WithPrincipal(r.Context(), p)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.IdentityID(p.IdentityID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
