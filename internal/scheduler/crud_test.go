package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"notibot/internal/storage"
)

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeStore(), &fakeDispatcher{})
	ctx := context.Background()
	future := timePtr(time.Now().Add(time.Hour))
	past := timePtr(time.Now().Add(-time.Hour))

	tests := []struct {
		name string
		spec CreateSpec
		want error
	}{
		{"fixed without cron", CreateSpec{Type: storage.TypeFixed, Name: "a", Message: "m"}, ErrMissingCron},
		{"fixed with bad cron", CreateSpec{Type: storage.TypeFixed, Name: "a", Message: "m", Cron: "not a cron"}, ErrInvalidCron},
		{"manual without time", CreateSpec{Type: storage.TypeManual, Name: "a", Message: "m"}, ErrMissingTime},
		{"event without time", CreateSpec{Type: storage.TypeEvent, Name: "a", Message: "m"}, ErrMissingTime},
		{"manual in the past", CreateSpec{Type: storage.TypeManual, Name: "a", Message: "m", ScheduledAt: past}, ErrPastTime},
		{"empty name", CreateSpec{Type: storage.TypeManual, Name: " ", Message: "m", ScheduledAt: future}, ErrMissingField},
		{"empty message", CreateSpec{Type: storage.TypeManual, Name: "a", Message: "", ScheduledAt: future}, ErrMissingField},
		{"unknown type", CreateSpec{Type: "weird", Name: "a", Message: "m"}, ErrMissingField},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.spec)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if svc.LiveCount() != 0 {
		t.Fatalf("validation failures registered live entries: %d", svc.LiveCount())
	}
}

func TestCreateFixedRegistersJob(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	svc := newTestService(st, &fakeDispatcher{})
	ctx := context.Background()

	rec, err := svc.Create(ctx, CreateSpec{
		Type: storage.TypeFixed, Name: "weekday brief", Message: "good morning",
		Cron: "0 9 * * 1-5", ChatID: 7,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !rec.Enabled {
		t.Fatal("created record should be enabled")
	}
	if svc.LiveCount() != 1 {
		t.Fatalf("LiveCount = %d, want 1", svc.LiveCount())
	}

	got, err := svc.FindAll(ctx, storage.TypeFixed, 0)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(got) != 1 || got[0].ID != rec.ID {
		t.Fatalf("FindAll(fixed) = %+v, want the created record", got)
	}
	if got, _ := svc.FindAll(ctx, storage.TypeManual, 0); len(got) != 0 {
		t.Fatalf("FindAll(manual) returned %d records", len(got))
	}
}

func TestCreateAppliesDefaultChat(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeStore(), &fakeDispatcher{})

	rec, err := svc.Create(context.Background(), CreateSpec{
		Type: storage.TypeFixed, Name: "n", Message: "m", Cron: "* * * * *",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ChatID != 100 {
		t.Fatalf("ChatID = %d, want default 100", rec.ChatID)
	}
}

func TestUpdateKeepsSingleLiveEntry(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeStore(), &fakeDispatcher{})
	ctx := context.Background()

	rec, err := svc.Create(ctx, CreateSpec{Type: storage.TypeFixed, Name: "n", Message: "m", Cron: "0 9 * * *"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newCron := "30 10 * * *"
	for i := 0; i < 3; i++ {
		if _, err := svc.Update(ctx, rec.ID, storage.Update{Cron: &newCron}); err != nil {
			t.Fatalf("Update #%d: %v", i, err)
		}
		if svc.LiveCount() != 1 {
			t.Fatalf("LiveCount after update #%d = %d, want 1", i, svc.LiveCount())
		}
	}

	off := false
	updated, err := svc.Update(ctx, rec.ID, storage.Update{Enabled: &off})
	if err != nil {
		t.Fatalf("Update(disable): %v", err)
	}
	if updated.Enabled || svc.LiveCount() != 0 {
		t.Fatalf("disable left live entries: enabled=%v live=%d", updated.Enabled, svc.LiveCount())
	}
}

func TestUpdateValidation(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeStore(), &fakeDispatcher{})
	ctx := context.Background()

	fixed, _ := svc.Create(ctx, CreateSpec{Type: storage.TypeFixed, Name: "n", Message: "m", Cron: "0 9 * * *"})
	manual, _ := svc.Create(ctx, CreateSpec{Type: storage.TypeManual, Name: "n", Message: "m",
		ScheduledAt: timePtr(time.Now().Add(time.Hour))})

	empty := ""
	if _, err := svc.Update(ctx, fixed.ID, storage.Update{Cron: &empty}); !errors.Is(err, ErrMissingCron) {
		t.Fatalf("err = %v, want ErrMissingCron", err)
	}
	bad := "* * *"
	if _, err := svc.Update(ctx, fixed.ID, storage.Update{Cron: &bad}); !errors.Is(err, ErrInvalidCron) {
		t.Fatalf("err = %v, want ErrInvalidCron", err)
	}
	past := time.Now().Add(-time.Minute)
	if _, err := svc.Update(ctx, manual.ID, storage.Update{ScheduledAt: &past}); !errors.Is(err, ErrPastTime) {
		t.Fatalf("err = %v, want ErrPastTime", err)
	}
	if _, err := svc.Update(ctx, "missing", storage.Update{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	// Failed validations must not have dropped the live entries.
	if svc.LiveCount() != 2 {
		t.Fatalf("LiveCount = %d, want 2", svc.LiveCount())
	}
}

func TestToggleEnabled(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeStore(), &fakeDispatcher{})
	ctx := context.Background()

	rec, err := svc.Create(ctx, CreateSpec{Type: storage.TypeFixed, Name: "n", Message: "m", Cron: "0 9 * * *"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.ToggleEnabled(ctx, rec.ID)
	if err != nil {
		t.Fatalf("ToggleEnabled: %v", err)
	}
	if got.Enabled || svc.LiveCount() != 0 {
		t.Fatalf("toggle off: enabled=%v live=%d", got.Enabled, svc.LiveCount())
	}

	got, err = svc.ToggleEnabled(ctx, rec.ID)
	if err != nil {
		t.Fatalf("ToggleEnabled: %v", err)
	}
	if !got.Enabled || svc.LiveCount() != 1 {
		t.Fatalf("toggle on: enabled=%v live=%d", got.Enabled, svc.LiveCount())
	}

	if _, err := svc.ToggleEnabled(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestToggleExpiredManualFails(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	svc := newTestService(st, &fakeDispatcher{})
	ctx := context.Background()

	rec := st.seed(storage.Schedule{
		Type: storage.TypeManual, Name: "old", Message: "m",
		Enabled: false, ScheduledAt: timePtr(time.Now().Add(-time.Hour)),
	})
	if _, err := svc.ToggleEnabled(ctx, rec.ID); !errors.Is(err, ErrPastTime) {
		t.Fatalf("err = %v, want ErrPastTime", err)
	}
	got, err := svc.FindByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Enabled {
		t.Fatal("failed toggle mutated the record")
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeStore(), &fakeDispatcher{})
	ctx := context.Background()

	rec, err := svc.Create(ctx, CreateSpec{Type: storage.TypeFixed, Name: "n", Message: "m", Cron: "0 9 * * *"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if svc.LiveCount() != 0 {
		t.Fatalf("LiveCount = %d after delete", svc.LiveCount())
	}
	if _, err := svc.FindByID(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record still findable: %v", err)
	}
	if err := svc.Delete(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestFindAllVisibility(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	svc := newTestService(st, &fakeDispatcher{})
	ctx := context.Background()
	loc := svc.Location()
	now := time.Now().In(loc)

	visibleIDs := map[string]bool{}

	// Manual that elapsed while disabled: hidden.
	hiddenManual := st.seed(storage.Schedule{Type: storage.TypeManual, Name: "gone", Message: "m",
		Enabled: false, ScheduledAt: timePtr(now.Add(-2 * time.Hour))})
	// Manual that elapsed but is still enabled (not yet fired): visible.
	r := st.seed(storage.Schedule{Type: storage.TypeManual, Name: "pending", Message: "m",
		Enabled: true, ScheduledAt: timePtr(now.Add(-time.Minute))})
	visibleIDs[r.ID] = true
	// Future manual, disabled: visible.
	r = st.seed(storage.Schedule{Type: storage.TypeManual, Name: "later", Message: "m",
		Enabled: false, ScheduledAt: timePtr(now.Add(2 * time.Hour))})
	visibleIDs[r.ID] = true
	// Event yesterday: hidden. Event today: visible. Event tomorrow: hidden.
	st.seed(storage.Schedule{Type: storage.TypeEvent, Name: "yesterday", Message: "m",
		Enabled: true, ScheduledAt: timePtr(now.AddDate(0, 0, -1))})
	r = st.seed(storage.Schedule{Type: storage.TypeEvent, Name: "today", Message: "m",
		Enabled: true, ScheduledAt: timePtr(now)})
	visibleIDs[r.ID] = true
	st.seed(storage.Schedule{Type: storage.TypeEvent, Name: "tomorrow", Message: "m",
		Enabled: true, ScheduledAt: timePtr(now.AddDate(0, 0, 1))})
	// Fixed records are always listed.
	r = st.seed(storage.Schedule{Type: storage.TypeFixed, Name: "cron", Message: "m",
		Enabled: false, Cron: "0 9 * * *"})
	visibleIDs[r.ID] = true

	got, err := svc.FindAll(ctx, "", 0)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(got) != len(visibleIDs) {
		t.Fatalf("FindAll returned %d records, want %d: %+v", len(got), len(visibleIDs), got)
	}
	for _, rec := range got {
		if !visibleIDs[rec.ID] {
			t.Fatalf("unexpected visible record %s (%s)", rec.ID, rec.Name)
		}
		if rec.ID == hiddenManual.ID {
			t.Fatal("elapsed disabled manual should be hidden")
		}
	}
}

func TestFindAllChatFilter(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeStore(), &fakeDispatcher{})
	ctx := context.Background()

	a, _ := svc.Create(ctx, CreateSpec{Type: storage.TypeFixed, Name: "a", Message: "m", Cron: "* * * * *", ChatID: 7})
	svc.Create(ctx, CreateSpec{Type: storage.TypeFixed, Name: "b", Message: "m", Cron: "* * * * *", ChatID: 8})
	// ChatID 0 resolves to the default chat (100).
	c, _ := svc.Create(ctx, CreateSpec{Type: storage.TypeFixed, Name: "c", Message: "m", Cron: "* * * * *"})

	got, err := svc.FindAll(ctx, "", 7)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("chat filter 7 = %+v", got)
	}
	got, _ = svc.FindAll(ctx, "", 100)
	if len(got) != 1 || got[0].ID != c.ID {
		t.Fatalf("chat filter 100 = %+v", got)
	}
}
