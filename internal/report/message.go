package report

import (
	"context"
	"time"

	"github.com/gyaneshwarpardhi/shiftbot/internal/event"
)

// Field is one labelled value of a confirmation card.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is the platform-neutral shape of everything shown to a user.
// Plain text replies only set Content.
type Message struct {
	Content     string
	Title       string
	Description string
	Color       int
	Fields      []Field
	Footer      string
	Timestamp   time.Time
}

// Reply is the handle returned by the initial acknowledgment. Update edits
// the same reply in place; Remove deletes it.
type Reply interface {
	Update(ctx context.Context, msg Message) error
	Remove(ctx context.Context) error
}

// DirectMessenger sends a private copy of a message to the actor.
type DirectMessenger interface {
	SendDirect(ctx context.Context, to event.Actor, msg Message) error
}

type presentation struct {
	emoji string
	name  string
	color int
}

var presentations = map[event.Kind]presentation{
	event.KindLogin:      {emoji: "🟢", name: "Login", color: 0x00ff00},
	event.KindBreakStart: {emoji: "⏸️", name: "Break", color: 0x0099ff},
	event.KindBreakEnd:   {emoji: "▶️", name: "Logout Break", color: 0x9900ff},
	event.KindLogout:     {emoji: "🔴", name: "Logout", color: 0xff0000},
}

func present(k event.Kind) presentation {
	if p, ok := presentations[k]; ok {
		return p
	}
	return presentation{emoji: "❔", name: string(k), color: 0x808080}
}
