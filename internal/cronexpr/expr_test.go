package cronexpr

import (
	"testing"
	"time"
)

func TestMatchField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		field string
		value int
		want  bool
	}{
		{"*", 0, true},
		{"*", 42, true},
		{"5", 5, true},
		{"5", 6, false},
		{"1-5", 3, true},
		{"1-5", 1, true},
		{"1-5", 5, true},
		{"1-5", 6, false},
		{"1,3,5", 3, true},
		{"1,3,5", 4, false},
		{"*/15", 0, true},
		{"*/15", 30, true},
		{"*/15", 20, false},
		{"1-3,10,*/30", 30, true},
		{"1-3,10,*/30", 7, false},
		{"abc", 3, false},
		{"", 3, false},
	}
	for _, tt := range tests {
		if got := MatchField(tt.field, tt.value); got != tt.want {
			t.Errorf("MatchField(%q, %d) = %v, want %v", tt.field, tt.value, got, tt.want)
		}
	}
}

func TestMatchDayOfWeek(t *testing.T) {
	t.Parallel()
	tests := []struct {
		field string
		dow   int
		want  bool
	}{
		{"0", 0, true},
		{"7", 0, true},
		{"5-7", 0, true},
		{"1-5", 0, false},
		{"1-5", 3, true},
		{"*", 6, true},
	}
	for _, tt := range tests {
		if got := MatchDayOfWeek(tt.field, tt.dow); got != tt.want {
			t.Errorf("MatchDayOfWeek(%q, %d) = %v, want %v", tt.field, tt.dow, got, tt.want)
		}
	}
}

func TestFiresOnDate(t *testing.T) {
	t.Parallel()
	wednesday := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC) // Wed
	saturday := time.Date(2020, time.January, 4, 0, 0, 0, 0, time.UTC)  // Sat
	if wednesday.Weekday() != time.Wednesday || saturday.Weekday() != time.Saturday {
		t.Fatal("fixture dates have unexpected weekdays")
	}

	tests := []struct {
		name string
		expr string
		date time.Time
		want bool
	}{
		{"weekday cron on wednesday", "0 9 * * 1-5", wednesday, true},
		{"weekday cron on saturday", "0 9 * * 1-5", saturday, false},
		{"every day", "30 8 * * *", saturday, true},
		{"specific dom match", "0 0 1 * *", wednesday, true},
		{"specific dom no match", "0 0 2 * *", wednesday, false},
		{"month match", "0 0 * 1 *", wednesday, true},
		{"month no match", "0 0 * 2 *", wednesday, false},
		{"sunday as 7", "0 10 * * 7", time.Date(2020, time.January, 5, 0, 0, 0, 0, time.UTC), true},
		{"malformed", "* * *", wednesday, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FiresOnDate(tt.expr, tt.date); got != tt.want {
				t.Fatalf("FiresOnDate(%q, %s) = %v, want %v", tt.expr, tt.date.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	valid := []string{
		"* * * * *",
		"0 9 * * 1-5",
		"*/5 * * * *",
		"0,30 8,20 1-15 * 0",
		"0 10 * * 7",
	}
	for _, expr := range valid {
		if err := Validate(expr); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", expr, err)
		}
	}

	invalid := []string{
		"",
		"* * * *",
		"* * * * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 8",
		"5-1 * * * *",
		"*/0 * * * *",
		"a * * * *",
		",, * * * *",
	}
	for _, expr := range invalid {
		if err := Validate(expr); err == nil {
			t.Errorf("Validate(%q) = nil, want error", expr)
		}
	}
}

func TestNormalizeDOW(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"0 9 * * 7", "0 9 * * 0"},
		{"0 9 * * 5-7", "0 9 * * 5-6,0"},
		{"0 9 * * 0-7", "0 9 * * 0-6"},
		{"0 9 * * 1-5", "0 9 * * 1-5"},
		{"0 9 * * 1,7", "0 9 * * 1,0"},
		{"not a cron", "not a cron"},
	}
	for _, tt := range tests {
		if got := NormalizeDOW(tt.in); got != tt.want {
			t.Errorf("NormalizeDOW(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayTime(t *testing.T) {
	t.Parallel()
	if got, ok := DisplayTime("30 9 * * *"); !ok || got != "09:30" {
		t.Fatalf("DisplayTime = %q, %v", got, ok)
	}
	if _, ok := DisplayTime("*/5 9 * * *"); ok {
		t.Fatal("expected no display time for step minute field")
	}
	if _, ok := DisplayTime("bad"); ok {
		t.Fatal("expected no display time for malformed expression")
	}
}
