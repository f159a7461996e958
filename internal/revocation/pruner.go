package revocation

import (
	"context"
	"time"

	"github.com/dropDatabas3/kidplay/internal/metrics"
	"github.com/dropDatabas3/kidplay/internal/observability/logger"
)

// Pruner borra periódicamente las entradas vencidas, fuera del request path.
type Pruner struct {
	Store    *Store
	Interval time.Duration
	Timeout  time.Duration
	Metrics  *metrics.Metrics
}

// Run bloquea hasta que ctx se cancela. Corre una pasada al arrancar.
func (p *Pruner) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	p.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Pruner) tick(ctx context.Context) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := logger.From(ctx).With(logger.Component("revocation.pruner"))
	n, err := p.Store.Prune(tickCtx, time.Now().UTC())
	if err != nil {
		log.Warn("prune failed", logger.Err(err))
		return
	}
	p.Metrics.RevocationsPruned(n)
	if n > 0 {
		log.Info("pruned expired revocations", logger.Count(n))
	}
}
