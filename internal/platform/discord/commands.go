package discord

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	cmdSetup           = "!setup"
	cmdSetupAttendance = "!setup_attendance"
	cmdStatus          = "!status"
	cmdPing            = "!ping"
)

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	switch command(m.Content) {
	case cmdSetup, cmdSetupAttendance:
		b.setup(s, m)
	case cmdStatus:
		b.statusCard(s, m)
	case cmdPing:
		b.ping(s, m)
	}
}

// command normalizes the whole message; commands take no arguments.
func command(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}

func (b *Bot) setup(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.GuildID == "" {
		return
	}
	perms, err := s.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		slog.Warn("could not resolve permissions", "user", m.Author.Username, "err", err)
		return
	}
	if perms&discordgo.PermissionAdministrator == 0 {
		if _, err := s.ChannelMessageSendReply(m.ChannelID, "❌ Solo los administradores pueden usar este comando.", m.Reference()); err != nil {
			slog.Warn("could not send permission notice", "err", err)
		}
		return
	}

	_, err = s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{panelEmbed()},
		Components: panelButtons(),
	})
	if err != nil {
		slog.Error("could not publish attendance panel", "channel", m.ChannelID, "err", err)
		return
	}
	slog.Info("attendance panel published", "channel", m.ChannelID, "by", m.Author.Username)

	if err := s.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		slog.Debug("could not delete setup command", "err", err)
	}
}

func (b *Bot) statusCard(s *discordgo.Session, m *discordgo.MessageCreate) {
	now := time.Now()
	card := statusEmbed(statusInfo{
		Tag:              b.UserTag(),
		Guilds:           b.Guilds(),
		Latency:          b.Latency(),
		Uptime:           now.Sub(b.started),
		LedgerConfigured: b.opts.LedgerConfigured(),
	}, now.In(b.opts.Location))
	_, err := s.ChannelMessageSendEmbed(m.ChannelID, card)
	if err != nil {
		slog.Warn("could not send status", "err", err)
	}
}

type statusInfo struct {
	Tag              string
	Guilds           int
	Latency          time.Duration
	Uptime           time.Duration
	LedgerConfigured bool
}

func statusEmbed(st statusInfo, now time.Time) *discordgo.MessageEmbed {
	ledger := "❌ No configurado"
	if st.LedgerConfigured {
		ledger = "✅ Configurado"
	}
	return &discordgo.MessageEmbed{
		Title: "🤖 Estado del Bot",
		Color: 0x00ff00,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Usuario", Value: st.Tag, Inline: true},
			{Name: "Servidores", Value: fmt.Sprint(st.Guilds), Inline: true},
			{Name: "Latencia", Value: fmt.Sprintf("%dms", st.Latency.Milliseconds()), Inline: true},
			{Name: "Activo desde hace", Value: st.Uptime.Round(time.Second).String(), Inline: true},
			{Name: "Google Sheets", Value: ledger, Inline: true},
			{Name: "Hora", Value: now.Format("02/01/2006, 15:04:05"), Inline: false},
		},
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

func (b *Bot) ping(s *discordgo.Session, m *discordgo.MessageCreate) {
	start := time.Now()
	msg, err := s.ChannelMessageSend(m.ChannelID, "🏓 Pong...")
	if err != nil {
		slog.Warn("could not answer ping", "err", err)
		return
	}
	content := fmt.Sprintf("🏓 Pong! Latencia: %dms | API: %dms",
		time.Since(start).Milliseconds(), b.Latency().Milliseconds())
	if _, err := s.ChannelMessageEdit(m.ChannelID, msg.ID, content); err != nil {
		slog.Warn("could not edit ping reply", "err", err)
	}
}
