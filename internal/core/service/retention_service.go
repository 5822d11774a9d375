package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/conteo/inventory-sync/internal/api/metrics"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

const purgeBatch = 100

// RetentionService drops the movement ledger of sessions finalized longer
// ago than the retention window. Sessions and reports are kept.
type RetentionService struct {
	sessions  ports.SessionRepository
	movements ports.MovementRepository
	window    time.Duration
	log       zerolog.Logger
}

func NewRetentionService(sessions ports.SessionRepository, movements ports.MovementRepository, window time.Duration, log zerolog.Logger) *RetentionService {
	return &RetentionService{sessions: sessions, movements: movements, window: window, log: log}
}

// PurgeExpired deletes expired ledgers and returns how many sessions were purged.
func (s *RetentionService) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if s.window <= 0 {
		return 0, nil
	}
	before := now.Add(-s.window)

	purged := 0
	for {
		sessions, err := s.sessions.ListPurgeable(ctx, before, purgeBatch)
		if err != nil {
			return purged, fmt.Errorf("retention: list: %w", err)
		}
		if len(sessions) == 0 {
			return purged, nil
		}

		for _, session := range sessions {
			n, err := s.movements.DeleteBySession(ctx, session.ID)
			if err != nil {
				return purged, fmt.Errorf("retention: delete %s: %w", session.ID, err)
			}
			if err := s.sessions.MarkMovementsPurged(ctx, session.ID, now); err != nil {
				return purged, fmt.Errorf("retention: mark %s: %w", session.ID, err)
			}
			metrics.RetentionPurgedTotal.Add(float64(n))
			purged++
			s.log.Info().Str("session_id", session.ID).Int64("movements", n).Msg("session ledger purged")
		}

		if len(sessions) < purgeBatch {
			return purged, nil
		}
	}
}
