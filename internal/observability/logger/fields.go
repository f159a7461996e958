package logger

import (
	"time"

	"go.uber.org/zap"
)

// ── HTTP ──

func RequestID(v string) zap.Field       { return zap.String("request_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Bytes(v int) zap.Field              { return zap.Int("bytes", v) }
func DurationMs(v int64) zap.Field       { return zap.Int64("duration_ms", v) }
func ClientIP(v string) zap.Field        { return zap.String("client_ip", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// ── Identidad y credenciales ──

// IdentityID es el único identificador de una cuenta padre.
func IdentityID(v string) zap.Field { return zap.String("identity_id", v) }

// JTI identifica una credencial para revocación.
func JTI(v string) zap.Field { return zap.String("jti", v) }

// Kind es la clase de credencial (access|refresh).
func Kind(v string) zap.Field { return zap.String("kind", v) }

// ── Sesiones de visualización ──

func ProfileID(v string) zap.Field { return zap.String("profile_id", v) }
func SessionID(v string) zap.Field { return zap.String("session_id", v) }
func Reason(v string) zap.Field    { return zap.String("reason", v) }
func Seconds(v int64) zap.Field    { return zap.Int64("seconds", v) }

// ── Sistema ──

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }
func Count(v int) zap.Field        { return zap.Int("count", v) }

func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field { return zap.Any(key, v) }
