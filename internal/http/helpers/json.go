// Package helpers tiene utilidades de request/response compartidas por los
// controllers.
package helpers

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	httperrors "github.com/dropDatabas3/kidplay/internal/http/errors"
)

const (
	maxJSONBody   = 1 << 20
	maxBeaconBody = 64 << 10
)

// ReadJSON decodifica JSON de forma tolerante (no falla por campos
// desconocidos). Exige Content-Type JSON y limita el body a 1MB.
// Devuelve false si ya escribió el error HTTP.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("Content-Type debe ser application/json"))
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			httperrors.WriteError(w, httperrors.ErrBodyTooLarge)
			return false
		}
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return false
	}
	return true
}

// ReadBeacon es para navigator.sendBeacon: no mira Content-Type (text/plain,
// form o JSON) y acepta body vacío. Los bodies tipo form se decodifican como
// un objeto de strings.
func ReadBeacon(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBeaconBody)
	defer r.Body.Close()

	b, err := io.ReadAll(r.Body)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrBodyTooLarge)
		return false
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return true
	}

	if b[0] != '{' {
		vals, err := url.ParseQuery(string(b))
		if err != nil {
			httperrors.WriteError(w, httperrors.ErrInvalidFormat)
			return false
		}
		flat := make(map[string]string, len(vals))
		for k := range vals {
			flat[k] = vals.Get(k)
		}
		if b, err = json.Marshal(flat); err != nil {
			httperrors.WriteError(w, httperrors.ErrInvalidFormat)
			return false
		}
	}
	if err := json.Unmarshal(b, v); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return false
	}
	return true
}

// WriteJSON escribe una respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// BearerToken extrae el token de Authorization: Bearer <token>. "" si falta.
func BearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < len("bearer ") || !strings.EqualFold(ah[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("bearer "):])
}
