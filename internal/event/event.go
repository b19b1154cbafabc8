package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is one of the four shift events. The string value is the token sent to
// the ledger.
type Kind string

const (
	KindLogin      Kind = "login"
	KindBreakStart Kind = "break"
	KindBreakEnd   Kind = "logout_break"
	KindLogout     Kind = "logout"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindLogin, KindBreakStart, KindBreakEnd, KindLogout:
		return true
	}
	return false
}

// netShare is the fraction of the gross amount that counts as net.
var netShare = decimal.RequireFromString("0.80")

// Actor identifies the user who triggered an event.
type Actor struct {
	ID            string
	Username      string
	Discriminator string
}

// Tag returns "<username>#<discriminator>".
func (a Actor) Tag() string {
	return a.Username + "#" + a.Discriminator
}

// Origin is the workspace/channel an action came from. A nil *Origin means a
// private context.
type Origin struct {
	Workspace string
	Channel   string
}

// SalesReport is attached to logout events only.
type SalesReport struct {
	ModelName      string
	Gross          decimal.Decimal
	SubscribedFans int64
}

// Net is always derived from Gross.
func (r SalesReport) Net() decimal.Decimal {
	return r.Gross.Mul(netShare)
}

// Event is one captured shift action. It lives for a single dispatch.
type Event struct {
	ID         string
	Kind       Kind
	Actor      Actor
	Origin     *Origin
	OccurredAt time.Time
	Sales      *SalesReport // logout only
}

// New stamps a fresh event with a correlation id and capture time.
func New(kind Kind, actor Actor, origin *Origin, now time.Time) *Event {
	return &Event{
		ID:         uuid.New().String(),
		Kind:       kind,
		Actor:      actor,
		Origin:     origin,
		OccurredAt: now,
	}
}
