// Package telegram delivers notifications over the Telegram Bot API and
// hosts the chat-command surface.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"notibot/pkg/logx"
)

// Config controls the Telegram client.
type Config struct {
	Token       string
	PollTimeout time.Duration // long-poll timeout, default 10s
	RatePerSec  int           // outgoing message rate limit, default 3
}

// Client wraps telebot and implements the scheduler's Dispatcher contract.
type Client struct {
	cfg     Config
	log     logx.Logger
	bot     *tele.Bot
	limiter *rate.Limiter
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 3
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg: cfg,
		log: log,
		bot: b,
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec),
	}, nil
}

// Bot exposes the underlying bot for handler registration.
func (c *Client) Bot() *tele.Bot { return c.bot }

// Send delivers a Markdown message to the chat, honoring the process-wide
// rate limit.
func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.bot.Send(tele.ChatID(chatID), text, tele.ModeMarkdown)
	return err
}

// Start runs the long-poll loop; it blocks until Stop is called.
func (c *Client) Start() {
	c.log.Info("polling started")
	c.bot.Start()
	c.log.Info("polling stopped")
}

func (c *Client) Stop() {
	c.bot.Stop()
}
