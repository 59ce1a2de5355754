package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"notibot/internal/cronexpr"
	"notibot/internal/storage"
	"notibot/pkg/logx"
)

// Create validates the spec per type, persists the record enabled, and
// registers a live job/timer for fixed and manual schedules.
func (s *Service) Create(ctx context.Context, spec CreateSpec) (storage.Schedule, error) {
	if err := s.validateCreate(spec); err != nil {
		return storage.Schedule{}, err
	}

	chatID := spec.ChatID
	if chatID == 0 {
		chatID = s.cfg.DefaultChatID
	}
	rec, err := s.store.Create(ctx, storage.Schedule{
		Type:        spec.Type,
		Name:        strings.TrimSpace(spec.Name),
		Message:     spec.Message,
		Description: spec.Description,
		ChatID:      chatID,
		Enabled:     true,
		Cron:        strings.TrimSpace(spec.Cron),
		ScheduledAt: spec.ScheduledAt,
		EventTime:   spec.EventTime,
	})
	if err != nil {
		return storage.Schedule{}, fmt.Errorf("create schedule: %w", err)
	}

	s.mu.Lock()
	s.registerLocked(rec)
	s.mu.Unlock()

	s.log.Info("schedule created",
		logx.String("id", rec.ID),
		logx.String("type", string(rec.Type)),
		logx.String("name", rec.Name))
	return rec, nil
}

func (s *Service) validateCreate(spec CreateSpec) error {
	if !spec.Type.Valid() {
		return fmt.Errorf("%w: type", ErrMissingField)
	}
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if strings.TrimSpace(spec.Message) == "" {
		return fmt.Errorf("%w: message", ErrMissingField)
	}
	switch spec.Type {
	case storage.TypeFixed:
		cronSpec := strings.TrimSpace(spec.Cron)
		if cronSpec == "" {
			return ErrMissingCron
		}
		if err := cronexpr.Validate(cronSpec); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCron, err)
		}
	case storage.TypeManual, storage.TypeEvent:
		if spec.ScheduledAt == nil {
			return ErrMissingTime
		}
		if spec.Type == storage.TypeManual && !spec.ScheduledAt.After(s.now()) {
			return ErrPastTime
		}
	}
	return nil
}

// FindAll reads the store and applies the optional type and chat filters.
// Read-time visibility: manual records that elapsed while disabled are
// hidden, and events are only listed on their calendar day.
func (s *Service) FindAll(ctx context.Context, typeFilter storage.Type, chatFilter int64) ([]storage.Schedule, error) {
	recs, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	now := s.today()
	out := make([]storage.Schedule, 0, len(recs))
	for _, rec := range recs {
		if typeFilter != "" && rec.Type != typeFilter {
			continue
		}
		if chatFilter != 0 && s.effectiveChat(rec) != chatFilter {
			continue
		}
		if !s.visible(rec, now) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Service) visible(rec storage.Schedule, now time.Time) bool {
	if rec.ScheduledAt == nil {
		return true
	}
	switch rec.Type {
	case storage.TypeManual:
		return rec.Enabled || rec.ScheduledAt.After(now)
	case storage.TypeEvent:
		return sameDate(rec.ScheduledAt.In(s.cfg.Location), now)
	}
	return true
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FindByID returns ErrNotFound for unknown ids.
func (s *Service) FindByID(ctx context.Context, id string) (storage.Schedule, error) {
	rec, err := s.store.FindByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Schedule{}, ErrNotFound
	}
	if err != nil {
		return storage.Schedule{}, fmt.Errorf("find schedule: %w", err)
	}
	return rec, nil
}

// Update re-validates type-specific rules on the changed fields, cancels any
// live entry, writes the partial update, and re-registers if the resulting
// record is enabled. A manual schedule whose time elapsed while it was being
// edited is forced off instead of being registered in the past.
func (s *Service) Update(ctx context.Context, id string, u storage.Update) (storage.Schedule, error) {
	rec, err := s.FindByID(ctx, id)
	if err != nil {
		return storage.Schedule{}, err
	}
	if err := s.validateUpdate(rec, u); err != nil {
		return storage.Schedule{}, err
	}

	s.mu.Lock()
	s.cancelLocked(id)
	s.mu.Unlock()

	updated, err := s.store.Update(ctx, id, u)
	if err != nil {
		return storage.Schedule{}, fmt.Errorf("update schedule: %w", err)
	}

	if updated.Enabled {
		if updated.Type == storage.TypeManual &&
			(updated.ScheduledAt == nil || !updated.ScheduledAt.After(s.now())) {
			off := false
			updated, err = s.store.Update(ctx, id, storage.Update{Enabled: &off})
			if err != nil {
				return storage.Schedule{}, fmt.Errorf("update schedule: %w", err)
			}
		} else {
			s.mu.Lock()
			s.registerLocked(updated)
			s.mu.Unlock()
		}
	}

	s.log.Info("schedule updated", logx.String("id", id), logx.Bool("enabled", updated.Enabled))
	return updated, nil
}

func (s *Service) validateUpdate(rec storage.Schedule, u storage.Update) error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if u.Message != nil && strings.TrimSpace(*u.Message) == "" {
		return fmt.Errorf("%w: message", ErrMissingField)
	}
	if rec.Type == storage.TypeFixed && u.Cron != nil {
		cronSpec := strings.TrimSpace(*u.Cron)
		if cronSpec == "" {
			return ErrMissingCron
		}
		if err := cronexpr.Validate(cronSpec); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCron, err)
		}
	}
	if rec.Type == storage.TypeManual && u.ScheduledAt != nil && !u.ScheduledAt.After(s.now()) {
		return ErrPastTime
	}
	return nil
}

// Delete cancels the live entry and removes the record.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	s.cancelLocked(id)
	s.mu.Unlock()

	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if !removed {
		return ErrNotFound
	}
	s.log.Info("schedule deleted", logx.String("id", id))
	return nil
}

// ToggleEnabled flips the enabled flag, mirroring Update's cancel-then-
// register. Re-enabling a manual schedule whose time already elapsed fails
// with ErrPastTime: an expired one-shot cannot be resurrected.
func (s *Service) ToggleEnabled(ctx context.Context, id string) (storage.Schedule, error) {
	rec, err := s.FindByID(ctx, id)
	if err != nil {
		return storage.Schedule{}, err
	}

	next := !rec.Enabled
	if next && rec.Type == storage.TypeManual &&
		(rec.ScheduledAt == nil || !rec.ScheduledAt.After(s.now())) {
		return storage.Schedule{}, ErrPastTime
	}

	s.mu.Lock()
	s.cancelLocked(id)
	s.mu.Unlock()

	updated, err := s.store.Update(ctx, id, storage.Update{Enabled: &next})
	if err != nil {
		return storage.Schedule{}, fmt.Errorf("toggle schedule: %w", err)
	}
	if updated.Enabled {
		s.mu.Lock()
		s.registerLocked(updated)
		s.mu.Unlock()
	}

	s.log.Info("schedule toggled", logx.String("id", id), logx.Bool("enabled", updated.Enabled))
	return updated, nil
}
