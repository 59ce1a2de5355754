// Package summary builds the once-a-day digest of what fires today and
// sends one message per destination chat.
package summary

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"notibot/internal/cronexpr"
	"notibot/internal/storage"
)

// Entry is one digest line.
type Entry struct {
	Time        string // display "HH:MM", may be empty
	Name        string
	Description string
}

// Digest is the aggregate message for one destination chat.
type Digest struct {
	ChatID int64
	Events []Entry
	Alarms []Entry
}

// Build decides per enabled record whether it fires on the given day, groups
// the qualifying ones by effective chat id, and returns one digest per chat
// in first-seen (creation) order. Chats with nothing firing today get no
// digest at all.
//
// Fixed records qualify via cron day matching; manual and event records
// qualify when their scheduled date is today. Events are listed separately
// from alarms; alarms are sorted by display time.
func Build(recs []storage.Schedule, today time.Time, defaultChat int64) []Digest {
	grouped := map[int64]*Digest{}
	var order []int64

	for _, rec := range recs {
		if !rec.Enabled || !firesToday(rec, today) {
			continue
		}
		chat := rec.ChatID
		if chat == 0 {
			chat = defaultChat
		}
		d, ok := grouped[chat]
		if !ok {
			d = &Digest{ChatID: chat}
			grouped[chat] = d
			order = append(order, chat)
		}
		e := Entry{
			Time:        displayTime(rec, today.Location()),
			Name:        rec.Name,
			Description: description(rec),
		}
		if rec.Type == storage.TypeEvent {
			d.Events = append(d.Events, e)
		} else {
			d.Alarms = append(d.Alarms, e)
		}
	}

	out := make([]Digest, 0, len(order))
	for _, chat := range order {
		d := grouped[chat]
		sort.SliceStable(d.Alarms, func(i, j int) bool {
			return sortKey(d.Alarms[i].Time) < sortKey(d.Alarms[j].Time)
		})
		out = append(out, *d)
	}
	return out
}

func firesToday(rec storage.Schedule, today time.Time) bool {
	switch rec.Type {
	case storage.TypeFixed:
		return cronexpr.FiresOnDate(rec.Cron, today)
	case storage.TypeManual, storage.TypeEvent:
		if rec.ScheduledAt == nil {
			return false
		}
		return sameDate(rec.ScheduledAt.In(today.Location()), today)
	}
	return false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func displayTime(rec storage.Schedule, loc *time.Location) string {
	switch rec.Type {
	case storage.TypeFixed:
		if hhmm, ok := cronexpr.DisplayTime(rec.Cron); ok {
			return hhmm
		}
		return rec.EventTime
	default:
		if rec.EventTime != "" {
			return rec.EventTime
		}
		if rec.ScheduledAt != nil {
			return rec.ScheduledAt.In(loc).Format("15:04")
		}
		return ""
	}
}

// description falls back to the message when none is set.
func description(rec storage.Schedule) string {
	if strings.TrimSpace(rec.Description) != "" {
		return rec.Description
	}
	return rec.Message
}

// sortKey pushes entries without a display time to the end.
func sortKey(hhmm string) string {
	if hhmm == "" {
		return "~"
	}
	return hhmm
}

// Empty reports whether the digest has nothing to say.
func (d Digest) Empty() bool {
	return len(d.Events) == 0 && len(d.Alarms) == 0
}

// Text renders the digest as a Markdown message.
func (d Digest) Text() string {
	var b strings.Builder
	b.WriteString("*Today's notifications*\n")
	if len(d.Events) > 0 {
		b.WriteString("\n📌 *Events*\n")
		for _, e := range d.Events {
			writeLine(&b, e)
		}
	}
	if len(d.Alarms) > 0 {
		b.WriteString("\n⏰ *Alarms*\n")
		for _, e := range d.Alarms {
			writeLine(&b, e)
		}
	}
	return b.String()
}

func writeLine(b *strings.Builder, e Entry) {
	if e.Time != "" {
		fmt.Fprintf(b, "• %s %s", e.Time, e.Name)
	} else {
		fmt.Fprintf(b, "• %s", e.Name)
	}
	if e.Description != "" && e.Description != e.Name {
		fmt.Fprintf(b, " - %s", e.Description)
	}
	b.WriteString("\n")
}
