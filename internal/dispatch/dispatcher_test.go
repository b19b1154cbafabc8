package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/shiftbot/internal/dispatch"
	"github.com/gyaneshwarpardhi/shiftbot/internal/event"
	"github.com/gyaneshwarpardhi/shiftbot/internal/ledger"
	"github.com/gyaneshwarpardhi/shiftbot/internal/report"
)

var captured = time.Date(2026, 10, 15, 17, 4, 5, 0, time.UTC)

// ── fakes ────────────────────────────────────────────────────────────────────

type fakeReply struct {
	mu        sync.Mutex
	updates   []report.Message
	removed   int
	updateErr error
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
	return nil
}

func (f *fakeReply) last() report.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return report.Message{}
	}
	return f.updates[len(f.updates)-1]
}

type fakeResponder struct {
	mu      sync.Mutex
	acks    []string
	forms   []string
	reply   *fakeReply
	ackErr  error
	formErr error
	panicOn string
}

func newResponder() *fakeResponder { return &fakeResponder{reply: &fakeReply{}} }

func (f *fakeResponder) Acknowledge(_ context.Context, content string) (report.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn == "ack" {
		panic("malformed interaction")
	}
	f.acks = append(f.acks, content)
	if f.ackErr != nil {
		return nil, f.ackErr
	}
	return f.reply, nil
}

func (f *fakeResponder) OpenForm(_ context.Context, formID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forms = append(f.forms, formID)
	return f.formErr
}

type fakeLedger struct {
	mu        sync.Mutex
	events    []*event.Event
	delivered bool
}

func (f *fakeLedger) Deliver(_ context.Context, ev *event.Event) (ledger.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	res := ledger.Result{Delivered: f.delivered, Record: ledger.NewRecord(ev)}
	if !f.delivered {
		return res, &ledger.DeliveryError{Reason: ledger.ReasonStatus, Status: 500}
	}
	return res, nil
}

func (f *fakeLedger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// blockingLedger holds every delivery until release is closed.
type blockingLedger struct {
	release chan struct{}
	started chan struct{}
}

func newBlockingLedger() *blockingLedger {
	return &blockingLedger{release: make(chan struct{}), started: make(chan struct{}, 16)}
}

func (b *blockingLedger) Deliver(ctx context.Context, ev *event.Event) (ledger.Result, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return ledger.Result{Delivered: true, Record: ledger.NewRecord(ev)}, nil
}

type fakeDM struct {
	mu   sync.Mutex
	sent []report.Message
	err  error
}

func (f *fakeDM) SendDirect(_ context.Context, _ event.Actor, m report.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return f.err
}

type fakeMirror struct {
	records []ledger.Record
}

func (f *fakeMirror) Publish(_ context.Context, rec ledger.Record, _ bool) error {
	f.records = append(f.records, rec)
	return errors.New("broker down")
}

type harness struct {
	d       *dispatch.Dispatcher
	ledger  *fakeLedger
	dm      *fakeDM
	mu      sync.Mutex
	removal []time.Duration
}

func newHarness(t *testing.T, l dispatch.Deliverer) *harness {
	t.Helper()
	h := &harness{dm: &fakeDM{}}
	if fl, ok := l.(*fakeLedger); ok {
		h.ledger = fl
	}
	rep := report.New(report.Config{
		Location:  time.FixedZone("America/Lima", -5*60*60),
		AfterFunc: func(d time.Duration, _ func()) {
			h.mu.Lock()
			h.removal = append(h.removal, d)
			h.mu.Unlock()
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h.d = dispatch.New(ctx, dispatch.Config{Workers: 2, QueueDepth: 4}, dispatch.Deps{
		Ledger:   l,
		Reporter: rep,
		Direct:   h.dm,
		Now:      func() time.Time { return captured },
	})
	t.Cleanup(h.d.Shutdown)
	return h
}

func alice() event.Actor { return event.Actor{ID: "42", Username: "alice", Discriminator: "0"} }

func logoutForm(model, gross, fans string) dispatch.Request {
	return dispatch.Request{
		ActionID: "logout_modal",
		Actor:    alice(),
		Origin:   &event.Origin{Workspace: "Agency", Channel: "asistencia"},
		Fields:   map[string]string{"modelo": model, "monto_bruto": gross, "fans_suscritos": fans},
	}
}

func fieldValue(m report.Message, name string) string {
	for _, f := range m.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestDispatch_RecordKinds(t *testing.T) {
	cases := map[string]event.Kind{
		"login":        event.KindLogin,
		"break":        event.KindBreakStart,
		"logout_break": event.KindBreakEnd,
	}
	for id, kind := range cases {
		t.Run(id, func(t *testing.T) {
			h := newHarness(t, &fakeLedger{delivered: true})
			resp := newResponder()

			h.d.Dispatch(context.Background(), dispatch.Request{ActionID: id, Actor: alice()}, resp)

			if len(resp.acks) != 1 || !strings.Contains(resp.acks[0], "procesando") {
				t.Fatalf("acks = %v, want one processing acknowledgment", resp.acks)
			}
			if h.ledger.calls() != 1 || h.ledger.events[0].Kind != kind {
				t.Fatalf("ledger events = %v, want one %s", h.ledger.events, kind)
			}
			if h.ledger.events[0].Sales != nil {
				t.Error("non-logout event must not carry sales")
			}
			if got := resp.reply.last().Footer; got != report.FooterSaved {
				t.Errorf("footer = %q, want %q", got, report.FooterSaved)
			}
			if len(h.dm.sent) != 1 {
				t.Errorf("direct messages = %d, want 1", len(h.dm.sent))
			}
			if len(h.removal) != 1 || h.removal[0] != 5*time.Second {
				t.Errorf("removal = %v, want [5s]", h.removal)
			}
		})
	}
}

func TestDispatch_DeliveryFailureIsReportedNotErrored(t *testing.T) {
	h := newHarness(t, &fakeLedger{delivered: false})
	resp := newResponder()

	h.d.Dispatch(context.Background(), dispatch.Request{ActionID: "login", Actor: alice()}, resp)

	msg := resp.reply.last()
	if msg.Footer != report.FooterNotSaved {
		t.Errorf("footer = %q, want %q", msg.Footer, report.FooterNotSaved)
	}
	if fieldValue(msg, "👤 Usuario") != "alice" {
		t.Error("confirmation must still show the actor")
	}
	if msg.Content == report.GenericFailure {
		t.Error("delivery failure must not be escalated to the error message")
	}
}

func TestDispatch_LogoutButtonOpensForm(t *testing.T) {
	h := newHarness(t, &fakeLedger{delivered: true})
	resp := newResponder()

	h.d.Dispatch(context.Background(), dispatch.Request{ActionID: "logout", Actor: alice()}, resp)

	if len(resp.forms) != 1 || resp.forms[0] != "logout_modal" {
		t.Fatalf("forms = %v, want [logout_modal]", resp.forms)
	}
	if len(resp.acks) != 0 || h.ledger.calls() != 0 {
		t.Error("opening the form must not acknowledge or deliver")
	}
}

func TestDispatch_LogoutSubmission(t *testing.T) {
	h := newHarness(t, &fakeLedger{delivered: true})
	resp := newResponder()

	h.d.Dispatch(context.Background(), logoutForm("M1", "$150.50", "#25"), resp)

	if h.ledger.calls() != 1 {
		t.Fatalf("ledger calls = %d, want 1", h.ledger.calls())
	}
	rec := ledger.NewRecord(h.ledger.events[0])
	if rec.Action != "logout" || rec.Model != "M1" || rec.Gross.String() != "150.5" || rec.Net.String() != "120.4" || *rec.Fans != 25 {
		t.Errorf("record = %+v", rec)
	}

	msg := resp.reply.last()
	for name, want := range map[string]string{
		"💵 Monto Bruto":       "$150.50",
		"💰 Monto Neto (80%)": "$120.40",
		"👥 Fans Suscritos":    "25",
	} {
		if got := fieldValue(msg, name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if len(h.removal) != 1 || h.removal[0] != 8*time.Second {
		t.Errorf("removal = %v, want [8s]", h.removal)
	}
}

func TestDispatch_ValidationFailureSkipsLedger(t *testing.T) {
	cases := []struct {
		name, gross, fans, want string
	}{
		{"bad amount", "abc", "25", "monto bruto"},
		{"negative amount", "-10", "25", "monto bruto"},
		{"bad count", "100", "lots", "fans suscritos"},
		{"negative count", "100", "-3", "fans suscritos"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, &fakeLedger{delivered: true})
			resp := newResponder()

			h.d.Dispatch(context.Background(), logoutForm("M1", tc.gross, tc.fans), resp)

			if h.ledger.calls() != 0 {
				t.Fatalf("ledger calls = %d, want 0", h.ledger.calls())
			}
			if got := resp.reply.last().Content; !strings.Contains(got, tc.want) {
				t.Errorf("message = %q, want mention of %q", got, tc.want)
			}
			if len(h.dm.sent) != 0 || len(h.removal) != 0 {
				t.Error("validation failures are not confirmations")
			}
		})
	}
}

func TestDispatch_UnknownActionIsIgnored(t *testing.T) {
	h := newHarness(t, &fakeLedger{delivered: true})
	resp := newResponder()

	h.d.Dispatch(context.Background(), dispatch.Request{ActionID: "clock_in_v2", Actor: alice()}, resp)

	if len(resp.acks) != 0 || len(resp.reply.updates) != 0 || len(resp.forms) != 0 {
		t.Error("unknown action must produce no reply")
	}
	if h.ledger.calls() != 0 {
		t.Error("unknown action must not reach the ledger")
	}
}

func TestDispatch_ErrorBoundary(t *testing.T) {
	t.Run("malformed form acknowledged then edited", func(t *testing.T) {
		h := newHarness(t, &fakeLedger{delivered: true})
		resp := newResponder()
		req := logoutForm("M1", "1", "1")
		delete(req.Fields, "fans_suscritos")

		h.d.Dispatch(context.Background(), req, resp)

		if got := resp.reply.last().Content; got != report.GenericFailure {
			t.Errorf("last update = %q, want generic failure", got)
		}
		if h.ledger.calls() != 0 {
			t.Error("malformed form must not reach the ledger")
		}
	})

	t.Run("failed acknowledgment retried with error", func(t *testing.T) {
		h := newHarness(t, &fakeLedger{delivered: true})
		resp := newResponder()
		resp.ackErr = errors.New("unknown interaction")

		h.d.Dispatch(context.Background(), dispatch.Request{ActionID: "login", Actor: alice()}, resp)

		if len(resp.acks) != 2 || resp.acks[1] != report.GenericFailure {
			t.Errorf("acks = %v, want processing then generic failure", resp.acks)
		}
		if h.ledger.calls() != 0 {
			t.Error("no delivery without acknowledgment")
		}
	})

	t.Run("panic is contained", func(t *testing.T) {
		h := newHarness(t, &fakeLedger{delivered: true})
		resp := newResponder()
		resp.panicOn = "ack"

		h.d.Dispatch(context.Background(), dispatch.Request{ActionID: "login", Actor: alice()}, resp)
	})

	t.Run("error message delivery failure is swallowed", func(t *testing.T) {
		h := newHarness(t, &fakeLedger{delivered: true})
		resp := newResponder()
		resp.reply.updateErr = errors.New("interaction expired")

		h.d.Dispatch(context.Background(), dispatch.Request{ActionID: "break", Actor: alice()}, resp)

		if h.ledger.calls() != 1 {
			t.Errorf("ledger calls = %d, want 1", h.ledger.calls())
		}
	})
}

func TestDispatch_DirectMessageFailureDoesNotAffectOutcome(t *testing.T) {
	h := newHarness(t, &fakeLedger{delivered: true})
	h.dm.err = errors.New("cannot send messages to this user")
	resp := newResponder()

	h.d.Dispatch(context.Background(), dispatch.Request{ActionID: "login", Actor: alice()}, resp)

	if got := resp.reply.last().Footer; got != report.FooterSaved {
		t.Errorf("footer = %q, want %q", got, report.FooterSaved)
	}
	for _, m := range resp.reply.updates {
		if m.Content == report.GenericFailure {
			t.Error("direct message failure escalated to the user")
		}
	}
}

func TestDispatch_MirrorFailureIsBestEffort(t *testing.T) {
	m := &fakeMirror{}
	rep := report.New(report.Config{AfterFunc: func(time.Duration, func()) {}})
	d := dispatch.New(context.Background(), dispatch.Config{Workers: 1, QueueDepth: 1}, dispatch.Deps{
		Ledger:   &fakeLedger{delivered: true},
		Reporter: rep,
		Mirror:   m,
	})
	defer d.Shutdown()
	resp := newResponder()

	d.Dispatch(context.Background(), dispatch.Request{ActionID: "login", Actor: alice()}, resp)

	if len(m.records) != 1 || m.records[0].Action != "login" {
		t.Errorf("mirror records = %+v", m.records)
	}
	if got := resp.reply.last().Footer; got != report.FooterSaved {
		t.Errorf("footer = %q", got)
	}
}

func TestSubmit_RunsOnPool(t *testing.T) {
	h := newHarness(t, &fakeLedger{delivered: true})
	resp := newResponder()

	if !h.d.Submit(context.Background(), dispatch.Request{ActionID: "login", Actor: alice()}, resp) {
		t.Fatal("Submit rejected with an empty queue")
	}
	h.d.Shutdown()

	if h.ledger.calls() != 1 {
		t.Errorf("ledger calls = %d, want 1", h.ledger.calls())
	}
}

func TestSubmit_AfterShutdownRejects(t *testing.T) {
	h := newHarness(t, &fakeLedger{delivered: true})
	h.d.Shutdown()
	resp := newResponder()

	if h.d.Submit(context.Background(), dispatch.Request{ActionID: "login", Actor: alice()}, resp) {
		t.Fatal("Submit accepted after shutdown")
	}
	if len(resp.acks) != 1 || !strings.Contains(resp.acks[0], "procesando") {
		t.Errorf("acks = %v, want one processing acknowledgment", resp.acks)
	}
	if got := resp.reply.last().Content; got != report.GenericFailure {
		t.Errorf("last update = %q, want generic failure", got)
	}
}

func TestSubmit_AcknowledgesWhileWorkersAreBusy(t *testing.T) {
	l := newBlockingLedger()
	h := newHarness(t, l)
	defer close(l.release)

	// Occupy both workers with deliveries that do not return.
	for i := 0; i < 2; i++ {
		h.d.Submit(context.Background(), dispatch.Request{ActionID: "login", Actor: alice()}, newResponder())
		select {
		case <-l.started:
		case <-time.After(time.Second):
			t.Fatal("worker did not pick up the delivery")
		}
	}

	resp := newResponder()
	start := time.Now()
	if !h.d.Submit(context.Background(), dispatch.Request{ActionID: "break", Actor: alice()}, resp) {
		t.Fatal("Submit rejected with queue space left")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("acknowledgment took %v behind busy workers", elapsed)
	}
	resp.mu.Lock()
	acks := append([]string(nil), resp.acks...)
	resp.mu.Unlock()
	if len(acks) != 1 || !strings.Contains(acks[0], "procesando") {
		t.Errorf("acks = %v, want immediate processing acknowledgment", acks)
	}

	form := newResponder()
	h.d.Submit(context.Background(), dispatch.Request{ActionID: "logout", Actor: alice()}, form)
	form.mu.Lock()
	forms := append([]string(nil), form.forms...)
	form.mu.Unlock()
	if len(forms) != 1 || forms[0] != "logout_modal" {
		t.Errorf("forms = %v, want logout_modal opened without queueing", forms)
	}
}

// End to end against a real ledger client and HTTP server.

func TestEndToEnd(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"result":"success"}`))
	}))
	defer srv.Close()

	posts := func() []map[string]interface{} {
		mu.Lock()
		defer mu.Unlock()
		return append([]map[string]interface{}(nil), bodies...)
	}
	reset := func() {
		mu.Lock()
		bodies = nil
		mu.Unlock()
	}

	t.Run("login", func(t *testing.T) {
		reset()
		h := newHarness(t, ledger.New(srv.URL))
		resp := newResponder()

		h.d.Dispatch(context.Background(), dispatch.Request{ActionID: "login", Actor: alice()}, resp)
		bodies := posts()

		if len(bodies) != 1 {
			t.Fatalf("POSTs = %d, want 1", len(bodies))
		}
		if bodies[0]["action"] != "login" || bodies[0]["usuario"] != "alice#0" {
			t.Errorf("body = %v", bodies[0])
		}
		if _, ok := bodies[0]["monto_bruto"]; ok {
			t.Error("login must not carry sales fields")
		}
		msg := resp.reply.last()
		if fieldValue(msg, "👤 Usuario") != "alice" || fieldValue(msg, "⏰ Hora (Lima)") != "15/10/2026, 12:04:05" {
			t.Errorf("confirmation fields = %+v", msg.Fields)
		}
		if msg.Footer != report.FooterSaved {
			t.Errorf("footer = %q", msg.Footer)
		}
	})

	t.Run("logout", func(t *testing.T) {
		reset()
		h := newHarness(t, ledger.New(srv.URL))
		resp := newResponder()

		h.d.Dispatch(context.Background(), logoutForm("M1", "$150.50", "#25"), resp)
		bodies := posts()

		if len(bodies) != 1 {
			t.Fatalf("POSTs = %d, want 1", len(bodies))
		}
		want := map[string]interface{}{
			"action":         "logout",
			"modelo":         "M1",
			"monto_bruto":    150.5,
			"monto_neto":     120.4,
			"fans_suscritos": float64(25),
			"servidor":       "Agency",
			"canal":          "asistencia",
		}
		for k, v := range want {
			if bodies[0][k] != v {
				t.Errorf("%s = %v, want %v", k, bodies[0][k], v)
			}
		}
	})

	t.Run("invalid logout", func(t *testing.T) {
		reset()
		h := newHarness(t, ledger.New(srv.URL))
		resp := newResponder()

		h.d.Dispatch(context.Background(), logoutForm("M1", "abc", "25"), resp)
		bodies := posts()

		if len(bodies) != 0 {
			t.Fatalf("POSTs = %d, want 0", len(bodies))
		}
		if got := resp.reply.last().Content; !strings.Contains(got, "monto bruto") {
			t.Errorf("message = %q", got)
		}
	})

	t.Run("unconfigured ledger", func(t *testing.T) {
		reset()
		h := newHarness(t, ledger.New(""))
		resp := newResponder()

		h.d.Dispatch(context.Background(), dispatch.Request{ActionID: "break", Actor: alice()}, resp)
		bodies := posts()

		if len(bodies) != 0 {
			t.Fatalf("POSTs = %d, want 0", len(bodies))
		}
		if got := resp.reply.last().Footer; got != report.FooterNotSaved {
			t.Errorf("footer = %q", got)
		}
	})
}
