package ledger

import (
	"encoding/json"

	"github.com/gyaneshwarpardhi/shiftbot/internal/event"
)

// Placeholders used when an action comes from a private context.
const (
	NoWorkspace = "DM/Privado"
	NoChannel   = "Mensaje Directo"
)

// Record is the JSON body posted to the ledger. Sales fields are omitted for
// every kind except logout.
type Record struct {
	Timestamp string      `json:"timestamp"`
	User      string      `json:"usuario"`
	Action    string      `json:"action"`
	Workspace string      `json:"servidor"`
	Channel   string      `json:"canal"`
	Model     string      `json:"modelo,omitempty"`
	Gross     json.Number `json:"monto_bruto,omitempty"`
	Net       json.Number `json:"monto_neto,omitempty"`
	Fans      *int64      `json:"fans_suscritos,omitempty"`
}

// NewRecord flattens ev into its wire shape.
func NewRecord(ev *event.Event) Record {
	rec := Record{
		Timestamp: ev.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		User:      ev.Actor.Tag(),
		Action:    string(ev.Kind),
		Workspace: NoWorkspace,
		Channel:   NoChannel,
	}
	if ev.Origin != nil {
		if ev.Origin.Workspace != "" {
			rec.Workspace = ev.Origin.Workspace
		}
		if ev.Origin.Channel != "" {
			rec.Channel = ev.Origin.Channel
		}
	}
	if s := ev.Sales; s != nil && ev.Kind == event.KindLogout {
		fans := s.SubscribedFans
		rec.Model = s.ModelName
		rec.Gross = json.Number(s.Gross.String())
		rec.Net = json.Number(s.Net().String())
		rec.Fans = &fans
	}
	return rec
}
