package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/gyaneshwarpardhi/shiftbot/internal/event"
	"github.com/gyaneshwarpardhi/shiftbot/internal/report"
)

// interactionResponder answers one interaction.
type interactionResponder struct {
	s *discordgo.Session
	i *discordgo.Interaction
}

func (r *interactionResponder) Acknowledge(ctx context.Context, content string) (report.Reply, error) {
	err := r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return &interactionReply{s: r.s, i: r.i}, nil
}

func (r *interactionResponder) OpenForm(ctx context.Context, formID string) error {
	return r.s.InteractionRespond(r.i, logoutForm(formID), discordgo.WithContext(ctx))
}

// interactionReply is the original ephemeral response of an interaction.
type interactionReply struct {
	s *discordgo.Session
	i *discordgo.Interaction
}

func (r *interactionReply) Update(ctx context.Context, msg report.Message) error {
	content := msg.Content
	list := embeds(msg)
	_, err := r.s.InteractionResponseEdit(r.i, &discordgo.WebhookEdit{
		Content: &content,
		Embeds:  &list,
	}, discordgo.WithContext(ctx))
	return err
}

func (r *interactionReply) Remove(ctx context.Context) error {
	return r.s.InteractionResponseDelete(r.i, discordgo.WithContext(ctx))
}

// DirectMessenger sends private copies through a user DM channel.
type DirectMessenger struct {
	s *discordgo.Session
}

// NewDirectMessenger wraps s.
func NewDirectMessenger(s *discordgo.Session) *DirectMessenger {
	return &DirectMessenger{s: s}
}

// SendDirect opens (or reuses) the DM channel with to and posts msg.
func (d *DirectMessenger) SendDirect(ctx context.Context, to event.Actor, msg report.Message) error {
	ch, err := d.s.UserChannelCreate(to.ID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open DM channel: %w", err)
	}
	_, err = d.s.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Content: msg.Content,
		Embeds:  embeds(msg),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send DM: %w", err)
	}
	return nil
}
