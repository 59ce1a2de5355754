package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("schedule not found")

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Type classifies a schedule.
//
//   - fixed: recurring, driven by a 5-field cron expression
//   - manual: one-shot, driven by an absolute future instant; self-disables
//     after firing
//   - event: display-only dated entry, picked up by the daily summary but
//     never live-scheduled on its own
type Type string

const (
	TypeFixed  Type = "fixed"
	TypeManual Type = "manual"
	TypeEvent  Type = "event"
)

// Valid reports whether t is a known schedule type.
func (t Type) Valid() bool {
	switch t {
	case TypeFixed, TypeManual, TypeEvent:
		return true
	}
	return false
}

// Schedule is the sole persisted entity.
//
// ID and CreatedAt are assigned by the store on Create and are immutable,
// as is Type. ChatID 0 means "use the configured default destination".
type Schedule struct {
	ID          string
	Type        Type
	Name        string
	Message     string
	Description string
	ChatID      int64
	Enabled     bool
	CreatedAt   time.Time
	Cron        string     // fixed only
	ScheduledAt *time.Time // manual/event only
	EventTime   string     // optional "HH:MM" display string
}

// Update carries a partial mutation; nil fields are left unchanged.
// Type and CreatedAt are deliberately absent (immutable after creation).
type Update struct {
	Name        *string
	Message     *string
	Description *string
	ChatID      *int64
	Enabled     *bool
	Cron        *string
	ScheduledAt *time.Time
	EventTime   *string
}

// Store is the durable CRUD surface consumed by the scheduler and summary.
type Store interface {
	// FindAll returns every record, oldest-created first.
	FindAll(ctx context.Context) ([]Schedule, error)
	// FindByID returns ErrNotFound for unknown ids.
	FindByID(ctx context.Context, id string) (Schedule, error)
	// Create assigns a fresh id and creation timestamp and stores the record.
	Create(ctx context.Context, s Schedule) (Schedule, error)
	// Update applies the partial mutation and returns the updated record.
	// Returns ErrNotFound for unknown ids.
	Update(ctx context.Context, id string, u Update) (Schedule, error)
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, id string) (bool, error)
	Close() error
}
