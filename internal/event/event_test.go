package event_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/shiftbot/internal/event"
)

func TestSalesReport_Net(t *testing.T) {
	cases := []struct {
		gross string
		want  string
	}{
		{"150.50", "120.4"},
		{"0", "0"},
		{"1000", "800"},
		{"0.01", "0.008"},
		{"12345.67", "9876.536"},
	}
	for _, tc := range cases {
		t.Run(tc.gross, func(t *testing.T) {
			r := event.SalesReport{Gross: decimal.RequireFromString(tc.gross)}
			if got := r.Net(); !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Errorf("Net(%s) = %s, want %s", tc.gross, got, tc.want)
			}
		})
	}
}

func TestKind_Valid(t *testing.T) {
	for _, k := range []event.Kind{event.KindLogin, event.KindBreakStart, event.KindBreakEnd, event.KindLogout} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
	if event.Kind("logout_modal").Valid() {
		t.Error("logout_modal is an action identifier, not a kind")
	}
}

func TestNew(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	a := event.New(event.KindLogin, event.Actor{Username: "alice", Discriminator: "0"}, nil, now)
	b := event.New(event.KindLogin, event.Actor{Username: "alice", Discriminator: "0"}, nil, now)

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
	if !a.OccurredAt.Equal(now) {
		t.Errorf("OccurredAt = %v, want %v", a.OccurredAt, now)
	}
	if a.Actor.Tag() != "alice#0" {
		t.Errorf("Tag() = %q, want alice#0", a.Actor.Tag())
	}
	if a.Sales != nil || a.Origin != nil {
		t.Error("expected no sales and no origin")
	}
}
