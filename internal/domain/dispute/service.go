package dispute

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/claimsnet/claims/internal/platform/apperr"
	"github.com/claimsnet/claims/internal/platform/db"
	"github.com/claimsnet/claims/internal/platform/metrics"
	"github.com/claimsnet/claims/internal/platform/websocket"
	"github.com/claimsnet/claims/pkg/pagination"
)

type Service struct {
	repo      Repository
	tx        db.TxRunner
	publisher websocket.EventPublisher
	now       func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, publisher websocket.EventPublisher) *Service {
	if publisher == nil {
		publisher = websocket.NopPublisher{}
	}
	return &Service{repo: repo, tx: tx, publisher: publisher, now: time.Now}
}

func (s *Service) Open(ctx context.Context, d *Dispute, actor string) error {
	if !d.Type.Valid() {
		return apperr.Validation("type", "unknown dispute type %q", d.Type)
	}
	d.Action = strings.TrimSpace(d.Action)
	if d.Action == "" {
		return apperr.Validation("action", "is required")
	}
	d.Description = strings.TrimSpace(d.Description)
	if utf8.RuneCountInString(d.Description) < MinTextLength {
		return apperr.Validation("description", "must be at least %d characters", MinTextLength)
	}

	now := s.now().UTC()
	d.ID = uuid.New()
	d.Status = StatusOpen
	d.OpenedBy = strPtr(actor)
	d.OpenedAt = now
	d.UpdatedAt = now

	if err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, d)
	}); err != nil {
		return fmt.Errorf("open dispute: %w", err)
	}

	metrics.WorkflowTransitions.WithLabelValues("dispute", string(d.Status)).Inc()
	log.Info().Str("dispute_id", d.ID.String()).Str("type", string(d.Type)).Msg("dispute opened")
	s.publish(ctx, "dispute.opened", d)
	return nil
}

// Resolve records the outcome of a dispute. Resolved and closed disputes
// are final.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, r Resolution, actor string) (*Dispute, error) {
	if r.Status == "" {
		r.Status = StatusResolved
	}
	if r.Status != StatusInProgress && r.Status != StatusResolved && r.Status != StatusClosed {
		return nil, apperr.Validation("status", "must be in_progress, resolved or closed")
	}
	text := strings.TrimSpace(r.Resolution)
	if utf8.RuneCountInString(text) < MinTextLength {
		return nil, apperr.Validation("resolution", "must be at least %d characters", MinTextLength)
	}
	return s.update(ctx, id, r.Status, text, strings.TrimSpace(r.Action), actor)
}

// Close ends a dispute in any non-final status, including open.
func (s *Service) Close(ctx context.Context, id uuid.UUID, actor string) (*Dispute, error) {
	return s.update(ctx, id, StatusClosed, "", "", actor)
}

func (s *Service) update(ctx context.Context, id uuid.UUID, target Status, resolution, action, actor string) (*Dispute, error) {
	var out *Dispute
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		d, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if d.Status.Terminal() {
			return apperr.Conflict("dispute is already %s", d.Status)
		}

		from := d.Status
		now := s.now().UTC()
		d.Status = target
		d.UpdatedAt = now
		if action != "" {
			d.Action = action
		}
		switch {
		case resolution != "":
			d.Resolution = &resolution
		case target == StatusClosed && d.Resolution == nil:
			def := DefaultCloseResolution
			d.Resolution = &def
		}
		if target.Terminal() {
			d.ResolvedAt = &now
			d.ResolvedBy = strPtr(actor)
		}

		updated, err := s.repo.Update(ctx, d, from)
		if err != nil {
			return fmt.Errorf("update dispute: %w", err)
		}
		if !updated {
			return apperr.Conflict("dispute was modified concurrently")
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.WorkflowTransitions.WithLabelValues("dispute", string(out.Status)).Inc()
	log.Info().Str("dispute_id", out.ID.String()).Str("status", string(out.Status)).Msg("dispute updated")
	s.publish(ctx, "dispute."+string(out.Status), out)
	return out, nil
}

func (s *Service) publish(ctx context.Context, eventType string, d *Dispute) {
	if err := s.publisher.Publish(ctx, websocket.NewEvent(websocket.TopicDisputes, eventType, d.ID.String(), d)); err != nil {
		log.Warn().Err(err).Str("dispute_id", d.ID.String()).Msg("publish dispute event")
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Dispute, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns the most recent disputes with global stats. When the stats
// query fails they are computed from the returned page instead.
func (s *Service) List(ctx context.Context, f Filter) ([]*Dispute, *Stats, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, nil, apperr.Validation("status", "unknown status %q", f.Status)
	}
	limit := pagination.New(1, f.Limit).Limit
	items, err := s.repo.List(ctx, f, limit)
	if err != nil {
		return nil, nil, err
	}
	stats, err := s.repo.Stats(ctx, nil, nil)
	if err != nil {
		log.Warn().Err(err).Msg("dispute stats query failed, computing from listed rows")
		stats = StatsOf(items)
	}
	return items, stats, nil
}

func (s *Service) ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]*Dispute, error) {
	return s.repo.ListByDeclaration(ctx, declarationID)
}

// Stats counts disputes opened in [from, to).
func (s *Service) Stats(ctx context.Context, from, to *time.Time) (*Stats, error) {
	return s.repo.Stats(ctx, from, to)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
