package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"notibot/internal/storage"
	"notibot/pkg/logx"
)

// fakeStore is an in-memory Store preserving creation order.
type fakeStore struct {
	mu   sync.Mutex
	recs []storage.Schedule
	seq  int
}

func newFakeStore() *fakeStore { return &fakeStore{} }

// seed inserts a record as-is (pre-existing state for restart tests).
func (f *fakeStore) seed(rec storage.Schedule) storage.Schedule {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("seed-%d", f.seq)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	f.recs = append(f.recs, rec)
	return rec
}

func (f *fakeStore) FindAll(ctx context.Context) ([]storage.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.Schedule, len(f.recs))
	copy(out, f.recs)
	return out, nil
}

func (f *fakeStore) FindByID(ctx context.Context, id string) (storage.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.recs {
		if r.ID == id {
			return r, nil
		}
	}
	return storage.Schedule{}, storage.ErrNotFound
}

func (f *fakeStore) Create(ctx context.Context, rec storage.Schedule) (storage.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	rec.ID = fmt.Sprintf("id-%d", f.seq)
	rec.CreatedAt = time.Now().UTC()
	f.recs = append(f.recs, rec)
	return rec, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, u storage.Update) (storage.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.recs {
		if f.recs[i].ID != id {
			continue
		}
		rec := f.recs[i]
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
		f.recs[i] = rec
		return rec, nil
	}
	return storage.Schedule{}, storage.ErrNotFound
}

func (f *fakeStore) Delete(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.recs {
		if f.recs[i].ID == id {
			f.recs = append(f.recs[:i], f.recs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Close() error { return nil }

type sentMsg struct {
	chatID int64
	text   string
}

// fakeDispatcher records sends and can be told to fail.
type fakeDispatcher struct {
	mu   sync.Mutex
	sent []sentMsg
	fail error
}

func (d *fakeDispatcher) Send(ctx context.Context, chatID int64, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.sent = append(d.sent, sentMsg{chatID: chatID, text: text})
	return nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func (d *fakeDispatcher) setFail(err error) {
	d.mu.Lock()
	d.fail = err
	d.mu.Unlock()
}

var errSendBoom = errors.New("send failed")

func newTestService(st storage.Store, d Dispatcher) *Service {
	return New(Config{
		DefaultChatID:   100,
		Location:        time.FixedZone("UTC+09:00", 9*3600),
		DispatchTimeout: time.Second,
	}, st, d, logx.Nop())
}

func timePtr(t time.Time) *time.Time { return &t }

// waitFor polls cond until it holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
