package heartbeat

import "time"

// Backoff calcula la espera del cliente entre reintentos de heartbeat:
// Base × Factor^fallos, acotado a Max.
type Backoff struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

// DefaultBackoff: 1s, ×1.5, tope 2 minutos.
var DefaultBackoff = Backoff{Base: time.Second, Factor: 1.5, Max: 2 * time.Minute}

// Delay para el reintento número failures (0 = primer reintento).
func (b Backoff) Delay(failures int) time.Duration {
	base, factor, max := b.Base, b.Factor, b.Max
	if base <= 0 {
		base = DefaultBackoff.Base
	}
	if factor < 1 {
		factor = DefaultBackoff.Factor
	}
	if max <= 0 {
		max = DefaultBackoff.Max
	}
	d := float64(base)
	for i := 0; i < failures; i++ {
		d *= factor
		if d >= float64(max) {
			return max
		}
	}
	return time.Duration(d)
}
