package summary

import (
	"context"
	"time"

	"notibot/internal/scheduler"
	"notibot/internal/storage"
	"notibot/pkg/logx"
)

// Config controls the aggregator.
type Config struct {
	// At is the local fire time, "HH:MM" (default "08:00").
	At string
	// DefaultChatID is the destination for records without a chat id.
	DefaultChatID int64
	// Location is the fixed local offset for "today" decisions.
	Location *time.Location
}

// Service reads enabled schedules once per day and dispatches one digest per
// destination chat.
type Service struct {
	cfg   Config
	log   logx.Logger
	store storage.Store
	disp  scheduler.Dispatcher

	now func() time.Time
}

func New(cfg Config, store storage.Store, disp scheduler.Dispatcher, log logx.Logger) *Service {
	if cfg.At == "" {
		cfg.At = "08:00"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log, store: store, disp: disp, now: time.Now}
}

// Register hooks the aggregator into the runtime scheduler as a recurring
// daily job.
func (s *Service) Register(sched *scheduler.Service) error {
	return sched.RunDaily("daily-summary", s.cfg.At, s.Run)
}

// Run builds and dispatches today's digests. Dispatch failures are logged
// per chat; the remaining digests are still sent.
func (s *Service) Run(ctx context.Context) {
	recs, err := s.store.FindAll(ctx)
	if err != nil {
		s.log.Error("summary: schedule read failed", logx.Err(err))
		return
	}
	today := s.now().In(s.cfg.Location)
	digests := Build(recs, today, s.cfg.DefaultChatID)
	if len(digests) == 0 {
		s.log.Debug("summary: nothing fires today")
		return
	}
	sent := 0
	for _, d := range digests {
		if d.Empty() {
			continue
		}
		if err := s.disp.Send(ctx, d.ChatID, d.Text()); err != nil {
			s.log.Error("summary: send failed", logx.Int64("chat_id", d.ChatID), logx.Err(err))
			continue
		}
		sent++
	}
	s.log.Info("summary dispatched", logx.Int("chats", sent), logx.Time("day", today))
}

// DigestFor renders today's digest for a single chat, for on-demand
// requests. Returns "" when nothing fires today for that chat.
func (s *Service) DigestFor(ctx context.Context, chatID int64) (string, error) {
	recs, err := s.store.FindAll(ctx)
	if err != nil {
		return "", err
	}
	today := s.now().In(s.cfg.Location)
	for _, d := range Build(recs, today, s.cfg.DefaultChatID) {
		if d.ChatID == chatID && !d.Empty() {
			return d.Text(), nil
		}
	}
	return "", nil
}
