package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"notibot/internal/scheduler"
	"notibot/internal/storage"
	"notibot/internal/summary"
	"notibot/pkg/logx"
)

const handlerTimeout = 15 * time.Second

// Router maps chat commands onto the scheduler core and translates its
// error kinds into user-facing replies.
type Router struct {
	log   logx.Logger
	sched *scheduler.Service
	sum   *summary.Service
	loc   *time.Location
}

func NewRouter(sched *scheduler.Service, sum *summary.Service, loc *time.Location, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{log: log, sched: sched, sum: sum, loc: loc}
}

func (r *Router) Attach(bot *tele.Bot) {
	bot.Handle("/help", r.wrap(r.handleHelp))
	bot.Handle("/start", r.wrap(r.handleHelp))
	bot.Handle("/list", r.wrap(r.handleList))
	bot.Handle("/detail", r.wrap(r.handleDetail))
	bot.Handle("/addalarm", r.wrap(r.handleAddAlarm))
	bot.Handle("/remind", r.wrap(r.handleRemind))
	bot.Handle("/addevent", r.wrap(r.handleAddEvent))
	bot.Handle("/toggle", r.wrap(r.handleToggle))
	bot.Handle("/delete", r.wrap(r.handleDelete))
	bot.Handle("/today", r.wrap(r.handleToday))
}

type handlerFunc func(ctx context.Context, c tele.Context) error

func (r *Router) wrap(h handlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		if err := h(ctx, c); err != nil {
			r.log.Warn("command failed",
				logx.String("command", commandOf(c)),
				logx.Int64("chat_id", c.Chat().ID),
				logx.Err(err))
			return c.Send(userError(err))
		}
		return nil
	}
}

func commandOf(c tele.Context) string {
	if m := c.Message(); m != nil {
		if i := strings.IndexByte(m.Text, ' '); i > 0 {
			return m.Text[:i]
		}
		return m.Text
	}
	return ""
}

// userError keeps replies short and specific for the known error kinds.
func userError(err error) string {
	switch {
	case errors.Is(err, scheduler.ErrNotFound):
		return "No schedule with that id."
	case errors.Is(err, scheduler.ErrMissingCron):
		return "A fixed schedule needs a cron expression."
	case errors.Is(err, scheduler.ErrInvalidCron):
		return "That cron expression is not supported: " + err.Error()
	case errors.Is(err, scheduler.ErrMissingTime):
		return "A time is required, format: 2006-01-02 15:04"
	case errors.Is(err, scheduler.ErrPastTime):
		return "That time has already passed."
	case errors.Is(err, scheduler.ErrMissingField):
		return "Missing field: " + err.Error()
	case errors.Is(err, errUsage):
		return err.Error()
	default:
		return "Something went wrong, try again later."
	}
}

var errUsage = errors.New("usage")

func usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func (r *Router) handleHelp(ctx context.Context, c tele.Context) error {
	return c.Send(strings.Join([]string{
		"*Commands*",
		"/list [fixed|manual|event] - schedules for this chat",
		"/detail <id> - full record",
		"/addalarm name | cron | message - recurring alarm",
		"/remind name | 2006-01-02 15:04 | message - one-shot reminder",
		"/addevent name | 2006-01-02 15:04 | message - dated event",
		"/toggle <id> - enable/disable",
		"/delete <id> - remove",
		"/today - today's digest now",
	}, "\n"), tele.ModeMarkdown)
}

func (r *Router) handleList(ctx context.Context, c tele.Context) error {
	var typeFilter storage.Type
	if arg := strings.TrimSpace(c.Message().Payload); arg != "" {
		typeFilter = storage.Type(strings.ToLower(arg))
		if !typeFilter.Valid() {
			return usagef("/list [fixed|manual|event]")
		}
	}
	recs, err := r.sched.FindAll(ctx, typeFilter, c.Chat().ID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return c.Send("Nothing scheduled here.")
	}
	var b strings.Builder
	for _, rec := range recs {
		fmt.Fprintf(&b, "`%s` [%s] %s %s%s\n",
			shortID(rec.ID), rec.Type, stateMark(rec.Enabled), rec.Name, whenSuffix(rec, r.loc))
	}
	return c.Send(b.String(), tele.ModeMarkdown)
}

func (r *Router) handleDetail(ctx context.Context, c tele.Context) error {
	id, err := r.resolveID(ctx, c.Message().Payload)
	if err != nil {
		return err
	}
	rec, err := r.sched.FindByID(ctx, id)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", rec.Name)
	fmt.Fprintf(&b, "id: `%s`\n", rec.ID)
	fmt.Fprintf(&b, "type: %s\n", rec.Type)
	fmt.Fprintf(&b, "enabled: %v\n", rec.Enabled)
	if rec.Cron != "" {
		fmt.Fprintf(&b, "cron: `%s`\n", rec.Cron)
	}
	if rec.ScheduledAt != nil {
		fmt.Fprintf(&b, "at: %s\n", rec.ScheduledAt.In(r.loc).Format("2006-01-02 15:04"))
	}
	if rec.EventTime != "" {
		fmt.Fprintf(&b, "time: %s\n", rec.EventTime)
	}
	if rec.Description != "" {
		fmt.Fprintf(&b, "description: %s\n", rec.Description)
	}
	fmt.Fprintf(&b, "message: %s\n", rec.Message)
	return c.Send(b.String(), tele.ModeMarkdown)
}

func (r *Router) handleAddAlarm(ctx context.Context, c tele.Context) error {
	name, cronSpec, message, err := splitThree(c.Message().Payload)
	if err != nil {
		return usagef("/addalarm name | cron | message")
	}
	rec, err := r.sched.Create(ctx, scheduler.CreateSpec{
		Type:    storage.TypeFixed,
		Name:    name,
		Message: message,
		Cron:    cronSpec,
		ChatID:  c.Chat().ID,
	})
	if err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("Alarm `%s` created.", shortID(rec.ID)), tele.ModeMarkdown)
}

func (r *Router) handleRemind(ctx context.Context, c tele.Context) error {
	rec, err := r.createDated(ctx, c, storage.TypeManual, "/remind name | 2006-01-02 15:04 | message")
	if err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("Reminder `%s` set for %s.",
		shortID(rec.ID), rec.ScheduledAt.In(r.loc).Format("2006-01-02 15:04")), tele.ModeMarkdown)
}

func (r *Router) handleAddEvent(ctx context.Context, c tele.Context) error {
	rec, err := r.createDated(ctx, c, storage.TypeEvent, "/addevent name | 2006-01-02 15:04 | message")
	if err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("Event `%s` added.", shortID(rec.ID)), tele.ModeMarkdown)
}

func (r *Router) createDated(ctx context.Context, c tele.Context, typ storage.Type, usage string) (storage.Schedule, error) {
	name, when, message, err := splitThree(c.Message().Payload)
	if err != nil {
		return storage.Schedule{}, usagef("%s", usage)
	}
	at, err := time.ParseInLocation("2006-01-02 15:04", when, r.loc)
	if err != nil {
		return storage.Schedule{}, usagef("time format is 2006-01-02 15:04")
	}
	return r.sched.Create(ctx, scheduler.CreateSpec{
		Type:        typ,
		Name:        name,
		Message:     message,
		ChatID:      c.Chat().ID,
		ScheduledAt: &at,
		EventTime:   at.Format("15:04"),
	})
}

func (r *Router) handleToggle(ctx context.Context, c tele.Context) error {
	id, err := r.resolveID(ctx, c.Message().Payload)
	if err != nil {
		return err
	}
	rec, err := r.sched.ToggleEnabled(ctx, id)
	if err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("`%s` is now %s.", shortID(rec.ID), onOff(rec.Enabled)), tele.ModeMarkdown)
}

func (r *Router) handleDelete(ctx context.Context, c tele.Context) error {
	id, err := r.resolveID(ctx, c.Message().Payload)
	if err != nil {
		return err
	}
	if err := r.sched.Delete(ctx, id); err != nil {
		return err
	}
	return c.Send("Deleted.")
}

func (r *Router) handleToday(ctx context.Context, c tele.Context) error {
	text, err := r.sum.DigestFor(ctx, c.Chat().ID)
	if err != nil {
		return err
	}
	if text == "" {
		return c.Send("Nothing scheduled for today.")
	}
	return c.Send(text, tele.ModeMarkdown)
}

// resolveID accepts a full id or a unique prefix of one.
func (r *Router) resolveID(ctx context.Context, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", usagef("schedule id required")
	}
	if _, err := r.sched.FindByID(ctx, arg); err == nil {
		return arg, nil
	}
	recs, err := r.sched.FindAll(ctx, "", 0)
	if err != nil {
		return "", err
	}
	var match string
	for _, rec := range recs {
		if strings.HasPrefix(rec.ID, arg) {
			if match != "" {
				return "", usagef("id prefix %q is ambiguous", arg)
			}
			match = rec.ID
		}
	}
	if match == "" {
		return "", scheduler.ErrNotFound
	}
	return match, nil
}

// splitThree parses "a | b | c" payloads.
func splitThree(payload string) (a, b, c string, err error) {
	parts := strings.SplitN(payload, "|", 3)
	if len(parts) != 3 {
		return "", "", "", errors.New("expected three fields")
	}
	a = strings.TrimSpace(parts[0])
	b = strings.TrimSpace(parts[1])
	c = strings.TrimSpace(parts[2])
	if a == "" || b == "" || c == "" {
		return "", "", "", errors.New("empty field")
	}
	return a, b, c, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func stateMark(enabled bool) string {
	if enabled {
		return "✅"
	}
	return "💤"
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func whenSuffix(rec storage.Schedule, loc *time.Location) string {
	switch {
	case rec.Cron != "":
		return fmt.Sprintf(" (`%s`)", rec.Cron)
	case rec.ScheduledAt != nil:
		return " (" + rec.ScheduledAt.In(loc).Format("2006-01-02 15:04") + ")"
	}
	return ""
}
