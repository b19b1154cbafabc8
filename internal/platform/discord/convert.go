package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/gyaneshwarpardhi/shiftbot/internal/dispatch"
	"github.com/gyaneshwarpardhi/shiftbot/internal/event"
	"github.com/gyaneshwarpardhi/shiftbot/internal/report"
)

// embeds renders msg as an embed list; plain text messages have none.
func embeds(msg report.Message) []*discordgo.MessageEmbed {
	if msg.Title == "" && len(msg.Fields) == 0 {
		return []*discordgo.MessageEmbed{}
	}
	e := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       msg.Color,
	}
	for _, f := range msg.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if msg.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: msg.Footer}
	}
	if !msg.Timestamp.IsZero() {
		e.Timestamp = msg.Timestamp.UTC().Format(time.RFC3339)
	}
	return []*discordgo.MessageEmbed{e}
}

func actorOf(u *discordgo.User) event.Actor {
	if u == nil {
		return event.Actor{}
	}
	return event.Actor{ID: u.ID, Username: u.Username, Discriminator: u.Discriminator}
}

// interactionUser is the member's user in a guild and the plain user in DMs.
func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// nameLookup resolves guild and channel names from the gateway cache.
type nameLookup interface {
	GuildName(id string) string
	ChannelName(id string) string
}

func originOf(i *discordgo.Interaction, names nameLookup) *event.Origin {
	if i.GuildID == "" {
		return nil
	}
	return &event.Origin{
		Workspace: names.GuildName(i.GuildID),
		Channel:   names.ChannelName(i.ChannelID),
	}
}

// formValues flattens the text inputs of a modal submission.
func formValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	out := make(map[string]string)
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rc := range row.Components {
			if in, ok := rc.(*discordgo.TextInput); ok {
				out[in.CustomID] = in.Value
			}
		}
	}
	return out
}

// requestOf maps a component click or modal submission to a dispatch
// request. ok is false for interaction types the bot does not handle.
func requestOf(i *discordgo.Interaction, names nameLookup) (req dispatch.Request, ok bool) {
	req = dispatch.Request{
		Actor:  actorOf(interactionUser(i)),
		Origin: originOf(i, names),
	}
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		req.ActionID = i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		req.ActionID = data.CustomID
		req.Fields = formValues(data)
	default:
		return req, false
	}
	return req, true
}
