package placement

import (
	"context"
	"time"

	"pet-custody/internal/platform/logger"
)

// Expirer corre ExpireDue cada interval hasta que se cancela el contexto.
type Expirer struct {
	svc      *Service
	interval time.Duration
	log      logger.Logger
}

func NewExpirer(svc *Service, interval time.Duration, log logger.Logger) *Expirer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Expirer{svc: svc, interval: interval, log: log}
}

func (e *Expirer) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.log.Info("placement expirer started", map[string]any{"interval": e.interval.String()})
	for {
		select {
		case <-ctx.Done():
			e.log.Info("placement expirer stopped", nil)
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Expirer) tick(ctx context.Context) {
	n, err := e.svc.ExpireDue(ctx)
	if err != nil {
		e.log.Error("expire placement requests failed", map[string]any{"error": err.Error(), "expired": n})
		return
	}
	if n > 0 {
		e.log.Info("placement requests expired", map[string]any{"expired": n})
	}
}
