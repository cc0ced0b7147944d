package order

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/entity"
)

// SweepResult reports how many orders each store dropped.
type SweepResult struct {
	Remote int64
	Local  int
}

// Sweep deletes the tenant's orders older than the retention window from both
// stores. Failures are logged and never surface to the caller.
func (s *Service) Sweep(ctx context.Context, tenantID string) SweepResult {
	cutoff := s.now().Add(-s.retention)

	ctx, span := serviceTracer.Start(ctx, "OrderService.Sweep", trace.WithAttributes(attribute.String("tenant.id", tenantID)))
	defer span.End()

	var result SweepResult

	remoteCtx, cancel := s.remoteContext(ctx)
	deleted, err := s.remote.DeleteCreatedBefore(remoteCtx, tenantID, cutoff)
	cancel()
	if err != nil {
		s.logger.Warn("remote sweep failed", zap.String("tenant_id", tenantID), zap.Error(err))
	} else {
		result.Remote = deleted
	}

	s.mirrorLocal(ctx, tenantID, func(orders []entity.Order) []entity.Order {
		kept := orders[:0]
		for _, o := range orders {
			if o.CreatedAt.IsZero() || !o.CreatedAt.Before(cutoff) {
				kept = append(kept, o)
			}
		}
		result.Local = len(orders) - len(kept)
		return kept
	})

	if result.Remote > 0 || result.Local > 0 {
		s.logger.Info("expired orders swept",
			zap.String("tenant_id", tenantID),
			zap.Int64("remote", result.Remote),
			zap.Int("local", result.Local),
		)
	}
	span.SetAttributes(attribute.Int64("swept.remote", result.Remote), attribute.Int("swept.local", result.Local))
	return result
}
