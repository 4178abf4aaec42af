package application

import (
	"context"
	"fmt"

	"github.com/threadlens/entitlement-service/internal/domain"
)

// TrackUsage appends one billable action to the bounded ledger and forwards
// it to the authority's analytics endpoint. The forward is best-effort and
// never blocks or fails the local record.
func (s *Service) TrackUsage(ctx context.Context, req UsageRequest) error {
	if err := domain.ValidateUsageAction(req.Action); err != nil {
		return err
	}
	entry := domain.UsageEntry{
		Action:   req.Action,
		At:       s.nowFn(),
		Metadata: req.Metadata,
	}
	if err := s.ledger.Append(ctx, entry, s.cfg.LedgerCap); err != nil {
		return err
	}

	if token, err := s.DeviceToken(ctx); err == nil {
		s.authority.TrackAnalytics(ctx, token, req.Action, req.Metadata)
	}
	return nil
}

// RecentUsage returns the newest entries, newest first.
func (s *Service) RecentUsage(ctx context.Context, limit int) ([]domain.UsageEntry, error) {
	if limit <= 0 || limit > s.cfg.LedgerCap {
		limit = s.cfg.LedgerCap
	}
	return s.ledger.Recent(ctx, limit)
}

// ModelState returns the opaque on-device model download-state blob, nil
// when none was saved.
func (s *Service) ModelState(ctx context.Context) ([]byte, error) {
	return s.fast.GetModelState(ctx)
}

const maxModelStateBytes = 64 << 10

// SaveModelState stores the blob verbatim. The service never inspects it.
func (s *Service) SaveModelState(ctx context.Context, blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("%w: empty model state", domain.ErrInvalidInput)
	}
	if len(blob) > maxModelStateBytes {
		return fmt.Errorf("%w: model state too large", domain.ErrInvalidInput)
	}
	return s.fast.PutModelState(ctx, blob)
}

// ResetLocalData wipes everything local: ledger, cached records, model
// state, the device identity and the durable mirror. The authority's own
// trial history is untouched, so a reset does not grant a second trial.
func (s *Service) ResetLocalData(ctx context.Context) error {
	var token string
	if id, err := s.fast.GetDeviceIdentity(ctx); err == nil && id != nil {
		token = id.Token
	}

	if err := s.ledger.Clear(ctx); err != nil {
		return err
	}
	if err := s.fast.Reset(ctx); err != nil {
		return err
	}
	if token != "" {
		if err := s.durable.Reset(ctx, token); err != nil {
			s.logger.WarnContext(ctx, "failed to reset durable tier",
				"operation", "reset", "error", err)
		}
	}
	s.ClearStatusCache()
	s.logger.InfoContext(ctx, "local data reset",
		"operation", "reset", "outcome", "cleared")
	return nil
}
