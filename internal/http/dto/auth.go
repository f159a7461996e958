// Package dto son los cuerpos JSON de request/response de la API.
package dto

// CredentialsRequest es el body de register y login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse: register/login devuelven ambas credenciales, refresh solo
// el access.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"` // "Bearer"
	ExpiresIn    int64  `json:"expires_in"` // segundos
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest: ambos opcionales; el access también puede venir como Bearer.
type LogoutRequest struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
