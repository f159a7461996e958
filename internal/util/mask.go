// Package util tiene helpers para no filtrar datos personales en logs.
package util

import (
	"net/url"
	"strings"
)

// MaskEmail deja la primera letra del usuario y del dominio: p…@e….com
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	user, dom, ok := strings.Cut(s, "@")
	if !ok || user == "" {
		if len(s) <= 3 {
			return "***"
		}
		return s[:1] + "…" + s[len(s)-1:]
	}
	if len(user) > 1 {
		user = user[:1] + "…"
	}
	host, rest, _ := strings.Cut(dom, ".")
	if len(host) > 1 {
		host = host[:1] + "…"
	}
	if rest == "" {
		return user + "@" + host
	}
	return user + "@" + host + "." + rest
}

// MaskDSN oculta el password de un DSN con forma de URL (xxxxx). Si no parsea
// devuelve "***".
func MaskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
