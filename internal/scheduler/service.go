package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"notibot/internal/cronexpr"
	"notibot/internal/storage"
	"notibot/pkg/logx"
)

type Service struct {
	cfg   Config
	log   logx.Logger
	store storage.Store
	disp  Dispatcher

	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]liveEntry
	gen     uint64
	started bool

	// now is swapped in tests.
	now func() time.Time
}

func New(cfg Config, store storage.Store, disp Dispatcher, log logx.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg,
		log:     log,
		store:   store,
		disp:    disp,
		cron:    cron.New(cron.WithLocation(cfg.Location)),
		entries: map[string]liveEntry{},
		now:     time.Now,
	}
}

// Location returns the fixed local offset used for day-boundary math.
func (s *Service) Location() *time.Location { return s.cfg.Location }

// RestoreOnStart rebuilds the live registry from the store and starts the
// cron runtime. Call exactly once per process, after the store is available
// and before external mutation requests are accepted.
//
// Enabled fixed records get a recurring job; enabled manual records with a
// future time get a one-shot timer; manual records that expired while the
// process was down are persisted as disabled. Disabled records and events
// are left untouched.
func (s *Service) RestoreOnStart(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	s.started = true
	s.mu.Unlock()

	recs, err := s.store.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("restore schedules: %w", err)
	}

	restored, expired := 0, 0
	for _, rec := range recs {
		if !rec.Enabled {
			continue
		}
		switch rec.Type {
		case storage.TypeFixed:
			s.mu.Lock()
			s.registerLocked(rec)
			s.mu.Unlock()
			restored++
		case storage.TypeManual:
			if rec.ScheduledAt != nil && rec.ScheduledAt.After(s.now()) {
				s.mu.Lock()
				s.registerLocked(rec)
				s.mu.Unlock()
				restored++
				continue
			}
			// Expired before restart: never fire, just turn it off.
			off := false
			if _, err := s.store.Update(ctx, rec.ID, storage.Update{Enabled: &off}); err != nil {
				s.log.Error("disable expired schedule failed", logx.String("id", rec.ID), logx.Err(err))
			}
			expired++
		}
	}

	s.cron.Start()
	s.log.Info("schedules restored",
		logx.Int("live", restored),
		logx.Int("expired", expired),
		logx.Int("total", len(recs)))
	return nil
}

// Shutdown cancels every live job and timer and stops the cron runtime.
// Safe to call even if nothing is registered.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	for _, e := range s.entries {
		if e.entryID != 0 {
			s.cron.Remove(e.entryID)
		}
		if e.timer != nil {
			_ = e.timer.Stop()
		}
	}
	n := len(s.entries)
	s.entries = map[string]liveEntry{}
	s.mu.Unlock()

	stop := s.cron.Stop()
	select {
	case <-stop.Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped", logx.Int("cancelled", n))
}

// RunDaily registers a process-owned recurring job firing every day at the
// given local "HH:MM". Used for the daily summary; these jobs live outside
// the schedule registry and survive until Shutdown.
func (s *Service) RunDaily(name, atHHMM string, job func(ctx context.Context)) error {
	h, m, err := parseHHMM(atHHMM)
	if err != nil {
		return err
	}
	spec := fmt.Sprintf("%d %d * * *", m, h)
	_, err = s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		job(ctx)
	})
	if err != nil {
		return err
	}
	s.log.Debug("daily job registered", logx.String("name", name), logx.String("at", atHHMM))
	return nil
}

// LiveCount returns the number of live registry entries.
func (s *Service) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// LiveIDs returns the ids with a live job or timer, sorted.
func (s *Service) LiveIDs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// registerLocked creates a live entry for an enabled record, cancelling any
// existing one first. Cancel-then-register is the invariant that keeps the
// registry at one entry per id; each registration gets a fresh generation so
// a one-shot callback that outlives its cancellation can detect it is stale.
//
// Live ticks follow the cron runtime's semantics, which differ from the
// digest's date matching when both day-of-month and day-of-week are
// restricted (the runtime fires on either match) and for step terms (the
// runtime steps from the range start rather than matching divisibility).
// Call with s.mu held.
func (s *Service) registerLocked(rec storage.Schedule) {
	s.cancelLocked(rec.ID)
	if !rec.Enabled {
		return
	}
	s.gen++
	gen := s.gen
	switch rec.Type {
	case storage.TypeFixed:
		id := rec.ID
		spec := cronexpr.NormalizeDOW(strings.TrimSpace(rec.Cron))
		eid, err := s.cron.AddFunc(spec, func() { s.fireRecurring(id) })
		if err != nil {
			s.log.Error("cron registration failed",
				logx.String("id", id), logx.String("cron", rec.Cron), logx.Err(err))
			return
		}
		s.entries[id] = liveEntry{gen: gen, entryID: eid}
	case storage.TypeManual:
		if rec.ScheduledAt == nil {
			return
		}
		id := rec.ID
		delay := rec.ScheduledAt.Sub(s.now())
		if delay < 0 {
			delay = 0
		}
		s.entries[id] = liveEntry{gen: gen, timer: time.AfterFunc(delay, func() { s.fireOnce(id, gen) })}
	case storage.TypeEvent:
		// Display-only: the daily summary picks events up by date.
	}
}

// cancelLocked stops and removes the live entry for id, if any. Cancellation
// is best-effort: a dispatch already in flight is not aborted. Call with
// s.mu held.
func (s *Service) cancelLocked(id string) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	if e.entryID != 0 {
		s.cron.Remove(e.entryID)
	}
	if e.timer != nil {
		_ = e.timer.Stop()
	}
	delete(s.entries, id)
}

// fireRecurring is the tick of a fixed schedule's cron job. It reads the
// current record so edits to message/chat apply to the next tick without
// re-registration.
func (s *Service) fireRecurring(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DispatchTimeout)
	defer cancel()

	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		s.log.Error("schedule lookup failed on tick", logx.String("id", id), logx.Err(err))
		return
	}
	if !rec.Enabled {
		return
	}
	if err := s.disp.Send(ctx, s.effectiveChat(rec), rec.Message); err != nil {
		// Swallowed: the job stays registered and retries on its next tick.
		s.log.Error("notification send failed", logx.String("id", id), logx.Err(err))
		return
	}
	s.log.Debug("notification sent", logx.String("id", id), logx.String("name", rec.Name))
}

// fireOnce is the fire of a manual schedule's one-shot timer. The record is
// disabled afterwards no matter what: a one-shot must never fire twice, even
// at the cost of dropping a failed delivery.
//
// The callback verifies its registration is still the current generation
// both before dispatching and before disabling: the schedule may have been
// cancelled or re-armed with a new time while the timer was firing, and a
// stale callback must not clobber the newer registration's record.
func (s *Service) fireOnce(id string, gen uint64) {
	if !s.claimLive(id, gen, false) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DispatchTimeout)
	defer cancel()

	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		s.log.Error("schedule lookup failed on fire", logx.String("id", id), logx.Err(err))
	} else if err := s.disp.Send(ctx, s.effectiveChat(rec), rec.Message); err != nil {
		s.log.Error("one-shot send failed", logx.String("id", id), logx.Err(err))
	} else {
		s.log.Debug("one-shot notification sent", logx.String("id", id), logx.String("name", rec.Name))
	}

	if !s.claimLive(id, gen, true) {
		// Re-armed during the dispatch; the new timer owns the record now.
		return
	}
	off := false
	if _, err := s.store.Update(ctx, id, storage.Update{Enabled: &off}); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Error("disable after fire failed", logx.String("id", id), logx.Err(err))
	}
}

// claimLive reports whether the entry for id still carries gen, removing it
// when remove is set. A timer already fired needs no stopping, so removal is
// just a map delete.
func (s *Service) claimLive(id string, gen uint64, remove bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.gen != gen {
		return false
	}
	if remove {
		delete(s.entries, id)
	}
	return true
}

func (s *Service) effectiveChat(rec storage.Schedule) int64 {
	if rec.ChatID != 0 {
		return rec.ChatID
	}
	return s.cfg.DefaultChatID
}

// today returns the current instant in the configured fixed offset.
func (s *Service) today() time.Time {
	return s.now().In(s.cfg.Location)
}

func parseHHMM(v string) (h, m int, err error) {
	parts := strings.SplitN(strings.TrimSpace(v), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", v)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", v)
	}
	return h, m, nil
}
