package report_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/shiftbot/internal/event"
	"github.com/gyaneshwarpardhi/shiftbot/internal/normalize"
	"github.com/gyaneshwarpardhi/shiftbot/internal/report"
)

var captured = time.Date(2026, 10, 15, 17, 4, 5, 0, time.UTC)

func lima() *time.Location { return time.FixedZone("America/Lima", -5*60*60) }

type fakeReply struct {
	mu        sync.Mutex
	updates   []report.Message
	removed   int
	updateErr error
	removeErr error
}

func (f *fakeReply) Update(_ context.Context, m report.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, m)
	return nil
}

func (f *fakeReply) Remove(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed++
	return f.removeErr
}

type fakeDM struct {
	sent []report.Message
	err  error
}

func (f *fakeDM) SendDirect(_ context.Context, _ event.Actor, m report.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

type scheduled struct {
	delays []time.Duration
	fns    []func()
}

func (s *scheduled) after(d time.Duration, fn func()) {
	s.delays = append(s.delays, d)
	s.fns = append(s.fns, fn)
}

func (s *scheduled) fire() {
	for _, fn := range s.fns {
		fn()
	}
}

func newReporter(s *scheduled) *report.Reporter {
	return report.New(report.Config{Location: lima(), AfterFunc: s.after})
}

func logoutEvent() *event.Event {
	ev := event.New(event.KindLogout, event.Actor{ID: "1", Username: "alice", Discriminator: "0"}, nil, captured)
	ev.Sales = &event.SalesReport{ModelName: "M1", Gross: decimal.RequireFromString("150.50"), SubscribedFans: 25}
	return ev
}

func fieldValues(m report.Message) map[string]string {
	out := make(map[string]string, len(m.Fields))
	for _, f := range m.Fields {
		out[f.Name] = f.Value
	}
	return out
}

func TestConfirmation_Login(t *testing.T) {
	r := newReporter(&scheduled{})
	ev := event.New(event.KindLogin, event.Actor{Username: "alice", Discriminator: "0"}, nil, captured)

	msg := r.Confirmation(ev, true)
	fields := fieldValues(msg)
	if fields["👤 Usuario"] != "alice" {
		t.Errorf("user field = %q", fields["👤 Usuario"])
	}
	if got := fields["⏰ Hora (Lima)"]; got != "15/10/2026, 12:04:05" {
		t.Errorf("local time = %q, want 15/10/2026, 12:04:05", got)
	}
	if msg.Footer != report.FooterSaved {
		t.Errorf("footer = %q", msg.Footer)
	}
	if !strings.Contains(msg.Title, "Login") {
		t.Errorf("title = %q", msg.Title)
	}
}

func TestConfirmation_LogoutFigures(t *testing.T) {
	r := newReporter(&scheduled{})
	msg := r.Confirmation(logoutEvent(), true)
	fields := fieldValues(msg)

	want := map[string]string{
		"📝 Modelo":           "M1",
		"💵 Monto Bruto":       "$150.50",
		"💰 Monto Neto (80%)": "$120.40",
		"👥 Fans Suscritos":    "25",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("%s = %q, want %q", k, fields[k], v)
		}
	}
	if msg.Footer != report.FooterSalesSaved {
		t.Errorf("footer = %q", msg.Footer)
	}
}

func TestConfirmation_FailureOnlyChangesFooter(t *testing.T) {
	r := newReporter(&scheduled{})
	for _, ev := range []*event.Event{
		event.New(event.KindBreakStart, event.Actor{Username: "alice"}, nil, captured),
		logoutEvent(),
	} {
		ok := r.Confirmation(ev, true)
		failed := r.Confirmation(ev, false)
		if failed.Footer != report.FooterNotSaved {
			t.Errorf("%s: footer = %q, want %q", ev.Kind, failed.Footer, report.FooterNotSaved)
		}
		ok.Footer, failed.Footer = "", ""
		if !reflect.DeepEqual(ok, failed) {
			t.Errorf("%s: content differs beyond footer:\n%+v\n%+v", ev.Kind, ok, failed)
		}
	}
}

func TestMoney(t *testing.T) {
	cases := map[string]string{
		"0":                       "$0.00",
		"150.5":                   "$150.50",
		"1234.5":                  "$1,234.50",
		"1000000":                 "$1,000,000.00",
		"0.004":                   "$0.00",
		"99999999999999999999.99": "$99,999,999,999,999,999,999.99",
		"12345678901234567890":    "$12,345,678,901,234,567,890.00",
	}
	for in, want := range cases {
		if got := report.Money(decimal.RequireFromString(in)); got != want {
			t.Errorf("Money(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestValidationFailure(t *testing.T) {
	_, amountErr := normalize.SalesReport("M1", "abc", "1")
	_, countErr := normalize.SalesReport("M1", "1", "abc")

	if got := report.ValidationFailure(amountErr).Content; !strings.Contains(got, "monto bruto") {
		t.Errorf("amount message = %q", got)
	}
	if got := report.ValidationFailure(countErr).Content; !strings.Contains(got, "fans suscritos") {
		t.Errorf("count message = %q", got)
	}
	if got := report.ValidationFailure(errors.New("boom")).Content; got != report.GenericFailure {
		t.Errorf("unknown error message = %q", got)
	}
}

func TestPublish(t *testing.T) {
	s := &scheduled{}
	r := newReporter(s)
	reply := &fakeReply{}
	dm := &fakeDM{}
	ev := logoutEvent()
	msg := r.Confirmation(ev, true)

	if err := r.Publish(context.Background(), reply, dm, ev, msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(reply.updates) != 1 || len(dm.sent) != 1 {
		t.Fatalf("updates = %d, direct messages = %d, want 1 and 1", len(reply.updates), len(dm.sent))
	}
	if len(s.delays) != 1 || s.delays[0] != 8*time.Second {
		t.Fatalf("scheduled removals = %v, want [8s]", s.delays)
	}
	if reply.removed != 0 {
		t.Fatal("removed before the delay elapsed")
	}
	s.fire()
	if reply.removed != 1 {
		t.Errorf("removed = %d, want 1", reply.removed)
	}
}

func TestPublish_BestEffortFailuresAreSwallowed(t *testing.T) {
	s := &scheduled{}
	r := newReporter(s)
	reply := &fakeReply{removeErr: errors.New("unknown message")}
	dm := &fakeDM{err: errors.New("cannot send messages to this user")}
	ev := event.New(event.KindLogin, event.Actor{Username: "alice"}, nil, captured)

	if err := r.Publish(context.Background(), reply, dm, ev, r.Confirmation(ev, true)); err != nil {
		t.Fatalf("best-effort failure escaped: %v", err)
	}
	if s.delays[0] != 5*time.Second {
		t.Errorf("removal delay = %v, want 5s", s.delays[0])
	}
	s.fire()
}

func TestPublish_UpdateFailureIsReturned(t *testing.T) {
	s := &scheduled{}
	r := newReporter(s)
	reply := &fakeReply{updateErr: errors.New("interaction expired")}
	ev := event.New(event.KindLogin, event.Actor{Username: "alice"}, nil, captured)

	if err := r.Publish(context.Background(), reply, nil, ev, r.Confirmation(ev, true)); err == nil {
		t.Fatal("expected error")
	}
	if len(s.delays) != 0 {
		t.Error("nothing should be scheduled after a failed update")
	}
}

func TestProcessing(t *testing.T) {
	r := newReporter(&scheduled{})
	if got := r.Processing(event.KindBreakEnd); got != "▶️ **Logout Break** procesando..." {
		t.Errorf("Processing(logout_break) = %q", got)
	}
	if got := r.Processing(event.KindLogout); !strings.Contains(got, "logout") {
		t.Errorf("Processing(logout) = %q", got)
	}
}
