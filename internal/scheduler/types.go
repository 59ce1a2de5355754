package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"notibot/internal/storage"
)

// Dispatcher delivers a text message to a chat destination. Implementations
// must be safe for concurrent use; failures are logged by the scheduler and
// never propagated to CRUD callers.
type Dispatcher interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Config controls the scheduler service.
type Config struct {
	// DefaultChatID is the process-wide destination used when a schedule
	// omits its chat id.
	DefaultChatID int64
	// Location is the fixed local offset used for cron firing and all
	// "today"/day-boundary calculations. Defaults to time.Local.
	Location *time.Location
	// DispatchTimeout bounds a single send attempt. Defaults to 10s.
	DispatchTimeout time.Duration
}

// CreateSpec carries the caller-supplied fields of a new schedule.
// Records are always created enabled.
type CreateSpec struct {
	Type        storage.Type
	Name        string
	Message     string
	Description string
	ChatID      int64
	Cron        string
	ScheduledAt *time.Time
	EventTime   string
}

// liveEntry is a registry handle: exactly one of entryID/timer is set.
// gen identifies the registration; a timer callback carrying an older gen
// is stale and must not touch the record.
type liveEntry struct {
	gen     uint64
	entryID cron.EntryID // recurring job, 0 if none
	timer   *time.Timer  // one-shot timer, nil if none
}
