// Package auth contiene los controllers de credenciales del padre.
package auth

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/kidplay/internal/gateway"
	"github.com/dropDatabas3/kidplay/internal/http/dto"
	httperrors "github.com/dropDatabas3/kidplay/internal/http/errors"
	"github.com/dropDatabas3/kidplay/internal/http/helpers"
	mw "github.com/dropDatabas3/kidplay/internal/http/middlewares"
	"github.com/dropDatabas3/kidplay/internal/jwt"
	"github.com/dropDatabas3/kidplay/internal/observability/logger"
)

// Service es lo que el controller usa del gateway.
type Service interface {
	Register(ctx context.Context, email, password string) (gateway.TokenPair, error)
	Login(ctx context.Context, email, password string) (gateway.TokenPair, error)
	RefreshAccess(ctx context.Context, refresh string) (gateway.Refreshed, error)
	Logout(ctx context.Context, access, refresh string) error
}

type Controller struct {
	svc Service
}

func NewController(svc Service) *Controller {
	return &Controller{svc: svc}
}

func pairResponse(p gateway.TokenPair) dto.TokenResponse {
	return dto.TokenResponse{
		AccessToken:  p.Access.Token,
		RefreshToken: p.Refresh.Token,
		TokenType:    "Bearer",
		ExpiresIn:    p.Access.ExpiresIn(),
	}
}

func accessResponse(c jwt.Credential) dto.TokenResponse {
	return dto.TokenResponse{AccessToken: c.Token, TokenType: "Bearer", ExpiresIn: c.ExpiresIn()}
}

func readCredentials(w http.ResponseWriter, r *http.Request) (dto.CredentialsRequest, bool) {
	var req dto.CredentialsRequest
	if !helpers.ReadJSON(w, r, &req) {
		return req, false
	}
	if req.Email == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email y password son requeridos"))
		return req, false
	}
	return req, true
}

// Register maneja POST /v1/auth/register
func (c *Controller) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := readCredentials(w, r)
	if !ok {
		return
	}
	pair, err := c.svc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		httperrors.WriteError(w, httperrors.Map(err))
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, pairResponse(pair))
}

// Login maneja POST /v1/auth/login
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := readCredentials(w, r)
	if !ok {
		return
	}
	pair, err := c.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httperrors.WriteError(w, httperrors.Map(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, pairResponse(pair))
}

// Refresh maneja POST /v1/auth/refresh
func (c *Controller) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	res, err := c.svc.RefreshAccess(r.Context(), req.RefreshToken)
	if err != nil {
		httperrors.WriteError(w, httperrors.Map(err))
		return
	}
	if res.Degraded {
		w.Header().Set(mw.DegradedHeader, mw.DegradedValue)
	}
	helpers.WriteJSON(w, http.StatusOK, accessResponse(res.Access))
}

// Logout maneja POST /v1/auth/logout. Siempre 200: es best-effort.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	var req dto.LogoutRequest
	if r.ContentLength != 0 && !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.AccessToken == "" {
		req.AccessToken = helpers.BearerToken(r)
	}
	if err := c.svc.Logout(r.Context(), req.AccessToken, req.RefreshToken); err != nil {
		logger.From(r.Context()).Warn("logout failed", logger.Layer("controller"), logger.Err(err))
	}
	helpers.WriteJSON(w, http.StatusOK, dto.OKResponse{OK: true})
}
