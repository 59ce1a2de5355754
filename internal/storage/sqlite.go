package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"notibot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the SQLite store at cfg.Path, creating the schema if
// needed.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const scheduleColumns = `id, type, name, message, description, chat_id, enabled, created_at, cron, scheduled_at, event_time`

func (s *sqliteStore) FindAll(ctx context.Context) ([]Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		rec, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) FindByID(ctx context.Context, id string) (Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	rec, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Schedule{}, ErrNotFound
	}
	return rec, err
}

func (s *sqliteStore) Create(ctx context.Context, rec Schedule) (Schedule, error) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules(`+scheduleColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, string(rec.Type), rec.Name, rec.Message, rec.Description,
		rec.ChatID, boolInt(rec.Enabled), rec.CreatedAt.Format(time.RFC3339Nano),
		rec.Cron, nullTime(rec.ScheduledAt), rec.EventTime,
	)
	if err != nil {
		return Schedule{}, err
	}
	return rec, nil
}

func (s *sqliteStore) Update(ctx context.Context, id string, u Update) (Schedule, error) {
	rec, err := s.FindByID(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	applyUpdate(&rec, u)

	_, err = s.db.ExecContext(ctx,
		`UPDATE schedules SET name=?, message=?, description=?, chat_id=?, enabled=?, cron=?, scheduled_at=?, event_time=? WHERE id=?`,
		rec.Name, rec.Message, rec.Description, rec.ChatID, boolInt(rec.Enabled),
		rec.Cron, nullTime(rec.ScheduledAt), rec.EventTime, id,
	)
	if err != nil {
		return Schedule{}, err
	}
	return rec, nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func applyUpdate(rec *Schedule, u Update) {
	if u.Name != nil {
		rec.Name = *u.Name
	}
	if u.Message != nil {
		rec.Message = *u.Message
	}
	if u.Description != nil {
		rec.Description = *u.Description
	}
	if u.ChatID != nil {
		rec.ChatID = *u.ChatID
	}
	if u.Enabled != nil {
		rec.Enabled = *u.Enabled
	}
	if u.Cron != nil {
		rec.Cron = *u.Cron
	}
	if u.ScheduledAt != nil {
		at := *u.ScheduledAt
		rec.ScheduledAt = &at
	}
	if u.EventTime != nil {
		rec.EventTime = *u.EventTime
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (Schedule, error) {
	var (
		rec       Schedule
		typ       string
		enabled   int
		createdAt string
		schedAt   sql.NullString
	)
	err := row.Scan(&rec.ID, &typ, &rec.Name, &rec.Message, &rec.Description,
		&rec.ChatID, &enabled, &createdAt, &rec.Cron, &schedAt, &rec.EventTime)
	if err != nil {
		return Schedule{}, err
	}
	rec.Type = Type(typ)
	rec.Enabled = enabled != 0
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Schedule{}, fmt.Errorf("parse created_at: %w", err)
	}
	if schedAt.Valid && schedAt.String != "" {
		at, err := time.Parse(time.RFC3339Nano, schedAt.String)
		if err != nil {
			return Schedule{}, fmt.Errorf("parse scheduled_at: %w", err)
		}
		rec.ScheduledAt = &at
	}
	return rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
