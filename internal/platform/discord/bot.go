// Package discord adapts the gateway to the dispatcher: button clicks and
// form submissions become dispatch requests, and text commands manage the
// attendance panel.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/gyaneshwarpardhi/shiftbot/internal/dispatch"
)

// Submitter schedules a request. dispatch.Dispatcher implements it.
type Submitter interface {
	Submit(ctx context.Context, req dispatch.Request, resp dispatch.Responder) bool
}

// NewSession creates a gateway session with the intents the bot needs.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsDirectMessages
	s.StateEnabled = true
	return s, nil
}

// Options configure the presentation side of the bot.
type Options struct {
	// Status is the "watching" presence text.
	Status   string
	Location *time.Location
	// LedgerConfigured is shown by !status and logged on ready.
	LedgerConfigured func() bool
}

// Bot owns the gateway session and its event handlers.
type Bot struct {
	s       *discordgo.Session
	submit  Submitter
	opts    Options
	ctx     context.Context
	started time.Time

	ready atomic.Bool
}

// New registers handlers on s. Requests are submitted with ctx.
func New(ctx context.Context, s *discordgo.Session, submit Submitter, opts Options) *Bot {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LedgerConfigured == nil {
		opts.LedgerConfigured = func() bool { return false }
	}
	b := &Bot{s: s, submit: submit, opts: opts, ctx: ctx, started: time.Now()}
	s.AddHandler(b.onReady)
	s.AddHandler(b.onDisconnect)
	s.AddHandler(b.onInteraction)
	s.AddHandler(b.onMessage)
	return b
}

// Open connects to the gateway.
func (b *Bot) Open() error {
	if err := b.s.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (b *Bot) Close() error {
	b.ready.Store(false)
	return b.s.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.ready.Store(true)
	if err := s.UpdateWatchStatus(0, b.opts.Status); err != nil {
		slog.Warn("could not set presence", "err", err)
	}
	slog.Info("discord gateway ready", "user", r.User.String(), "guilds", len(r.Guilds),
		"ledger_configured", b.opts.LedgerConfigured())
}

func (b *Bot) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	b.ready.Store(false)
	slog.Warn("discord gateway disconnected")
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	req, ok := requestOf(i.Interaction, b)
	if !ok {
		return
	}
	b.submit.Submit(b.ctx, req, &interactionResponder{s: s, i: i.Interaction})
}

// Ready reports whether the gateway session is up.
func (b *Bot) Ready() bool { return b.ready.Load() }

// UserTag is the bot's own user#discriminator, empty before Ready.
func (b *Bot) UserTag() string {
	if b.s.State == nil || b.s.State.User == nil {
		return ""
	}
	return b.s.State.User.String()
}

func (b *Bot) Guilds() int {
	if b.s.State == nil {
		return 0
	}
	b.s.State.RLock()
	defer b.s.State.RUnlock()
	return len(b.s.State.Guilds)
}

func (b *Bot) Latency() time.Duration {
	return b.s.HeartbeatLatency()
}

// GuildName falls back to the ID when the guild is not cached.
func (b *Bot) GuildName(id string) string {
	if b.s.State != nil {
		if g, err := b.s.State.Guild(id); err == nil && g.Name != "" {
			return g.Name
		}
	}
	return id
}

func (b *Bot) ChannelName(id string) string {
	if b.s.State != nil {
		if c, err := b.s.State.Channel(id); err == nil && c.Name != "" {
			return c.Name
		}
	}
	return id
}
