package service

import (
	"context"
	"sync"
	"time"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuditService writes audit entries off the request path. Every entry is
// logged; it is also persisted when a repository is configured.
type AuditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger

	inflight sync.WaitGroup
}

var _ ports.AuditService = (*AuditService)(nil)

func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditService {
	return &AuditService{repo: repo, log: logger.Component(log, "audit")}
}

// Log fills in the id and timestamp and returns immediately. Cancelling
// ctx does not abort the write.
func (s *AuditService) Log(ctx context.Context, entry *domain.AuditLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	writeCtx := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.write(writeCtx, entry)
	}()
}

func (s *AuditService) write(ctx context.Context, entry *domain.AuditLog) {
	s.log.Info().
		Str("action", string(entry.Action)).
		Str("actor", entry.Actor).
		Str("order_number", entry.ResourceID).
		Str("ip", entry.IPAddress).
		Msg("audit")

	if s.repo == nil {
		return
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("Audit entry not persisted")
	}
}

// Flush waits for pending writes, or for ctx to end.
func (s *AuditService) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
