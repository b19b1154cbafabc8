// Package dispatch turns user actions into shift events. Each action is an
// independent unit of work: it is acknowledged, optionally validated,
// delivered to the ledger and reported back, with failures of any step
// contained inside that action.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gyaneshwarpardhi/shiftbot/internal/action"
	"github.com/gyaneshwarpardhi/shiftbot/internal/event"
	"github.com/gyaneshwarpardhi/shiftbot/internal/ledger"
	"github.com/gyaneshwarpardhi/shiftbot/internal/metrics"
	"github.com/gyaneshwarpardhi/shiftbot/internal/normalize"
	"github.com/gyaneshwarpardhi/shiftbot/internal/report"
)

const (
	DefaultWorkers    = 32
	DefaultQueueDepth = 1000
)

// Request is one user action as delivered by the platform. Fields is only
// set for form submissions.
type Request struct {
	ActionID string
	Actor    event.Actor
	Origin   *event.Origin
	Fields   map[string]string
}

// Responder is the platform side of a single action.
type Responder interface {
	// Acknowledge sends the initial ephemeral reply and returns its handle.
	Acknowledge(ctx context.Context, content string) (report.Reply, error)
	// OpenForm shows the form identified by formID to the actor.
	OpenForm(ctx context.Context, formID string) error
}

// Deliverer records an event in the ledger.
type Deliverer interface {
	Deliver(ctx context.Context, ev *event.Event) (ledger.Result, error)
}

// Publisher receives a copy of every attempted ledger record.
type Publisher interface {
	Publish(ctx context.Context, rec ledger.Record, delivered bool) error
}

// Deps are the collaborators of a Dispatcher. Mirror and Direct may be nil.
type Deps struct {
	Actions  *action.Registry
	Ledger   Deliverer
	Reporter *report.Reporter
	Direct   report.DirectMessenger
	Mirror   Publisher
	Now      func() time.Time
}

// Config sizes the worker pool.
type Config struct {
	Workers    int
	QueueDepth int
}

// task is an acknowledged action waiting for a worker.
type task struct {
	req Request
	act action.Action
	s   *session
}

// Dispatcher is the per-action error boundary.
type Dispatcher struct {
	deps Deps
	pool *workerPool[task]
}

// New creates a Dispatcher and starts its workers. Cancelling ctx stops them.
func New(ctx context.Context, cfg Config, deps Deps) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}
	if deps.Actions == nil {
		deps.Actions = action.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	d := &Dispatcher{deps: deps}
	d.pool = newWorkerPool[task](ctx, cfg.Workers, cfg.QueueDepth, d.process)
	return d
}

// Submit acknowledges req on the caller's goroutine and schedules the rest
// on the worker pool. Forms are opened here and never queued. When the queue
// is full the acknowledgment is replaced by a retry message and false is
// returned.
func (d *Dispatcher) Submit(ctx context.Context, req Request, resp Responder) bool {
	t, ok := d.begin(ctx, req, resp)
	if !ok {
		return true
	}
	if d.pool.Submit(t) {
		metrics.QueueUtilization.Set(d.QueueUtilization())
		return true
	}
	metrics.ActionsDropped.Inc()
	slog.Warn("dispatch queue full, rejecting action", "action", req.ActionID, "user", req.Actor.Username)
	d.fail(ctx, t.s, req, errors.New("dispatch queue full"))
	return false
}

// QueueUtilization returns queue used / capacity (0–1).
func (d *Dispatcher) QueueUtilization() float64 {
	if d.pool.QueueCap() == 0 {
		return 0
	}
	return float64(d.pool.QueueLen()) / float64(d.pool.QueueCap())
}

// Shutdown drains the pool.
func (d *Dispatcher) Shutdown() {
	d.pool.Drain()
}

// session tracks whether the action has been acknowledged yet.
type session struct {
	resp  Responder
	reply report.Reply
}

func (s *session) acknowledge(ctx context.Context, content string) error {
	reply, err := s.resp.Acknowledge(ctx, content)
	if err != nil {
		return fmt.Errorf("acknowledge: %w", err)
	}
	s.reply = reply
	return nil
}

// Dispatch handles req synchronously. It never panics and never returns an
// error: anything unexpected is logged and turned into a generic message.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, resp Responder) {
	if t, ok := d.begin(ctx, req, resp); ok {
		d.process(ctx, t)
	}
}

// begin runs Received → Acknowledged without any blocking work besides the
// acknowledgment itself. ok is false when nothing is left to process.
func (d *Dispatcher) begin(ctx context.Context, req Request, resp Responder) (t task, ok bool) {
	a, found := d.deps.Actions.Get(req.ActionID)
	if !found {
		metrics.ActionsIgnored.Inc()
		slog.Warn("ignoring unknown action identifier", "action", req.ActionID, "user", req.Actor.Username)
		return task{}, false
	}
	metrics.ActionsReceived.WithLabelValues(a.ID).Inc()
	slog.Info("action received", "action", a.ID, "user", req.Actor.Username)

	s := &session{resp: resp}
	defer func() {
		if p := recover(); p != nil {
			d.fail(ctx, s, req, fmt.Errorf("panic: %v", p))
			t, ok = task{}, false
		}
	}()

	switch a.Mode {
	case action.ModeOpenForm:
		if err := resp.OpenForm(ctx, action.IDLogoutForm); err != nil {
			d.fail(ctx, s, req, err)
		}
		return task{}, false
	case action.ModeRecord, action.ModeSubmitForm:
		if err := s.acknowledge(ctx, d.deps.Reporter.Processing(a.Kind)); err != nil {
			d.fail(ctx, s, req, err)
			return task{}, false
		}
		return task{req: req, act: a, s: s}, true
	default:
		d.fail(ctx, s, req, fmt.Errorf("action %q has unsupported mode %d", a.ID, a.Mode))
		return task{}, false
	}
}

// process runs Validating → Delivering → Reported for an acknowledged action.
func (d *Dispatcher) process(ctx context.Context, t task) {
	defer func() {
		if p := recover(); p != nil {
			d.fail(ctx, t.s, t.req, fmt.Errorf("panic: %v", p))
		}
	}()

	var err error
	switch t.act.Mode {
	case action.ModeRecord:
		err = d.record(ctx, t)
	case action.ModeSubmitForm:
		err = d.submitForm(ctx, t)
	}
	if err != nil {
		d.fail(ctx, t.s, t.req, err)
	}
}

func (d *Dispatcher) record(ctx context.Context, t task) error {
	ev := event.New(t.act.Kind, t.req.Actor, t.req.Origin, d.deps.Now())
	return d.deliver(ctx, t.s.reply, ev)
}

func (d *Dispatcher) submitForm(ctx context.Context, t task) error {
	reply := t.s.reply
	fields, err := formFields(t.req.Fields, normalize.FieldModel, normalize.FieldGross, normalize.FieldFans)
	if err != nil {
		return err
	}
	sales, err := normalize.SalesReport(fields[0], fields[1], fields[2])
	if err != nil {
		var ve *normalize.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		metrics.ValidationFailures.WithLabelValues(ve.Field).Inc()
		slog.Info("logout form rejected", "user", t.req.Actor.Username, "field", ve.Field, "err", err)
		if uerr := reply.Update(ctx, report.ValidationFailure(err)); uerr != nil {
			return fmt.Errorf("report validation failure: %w", uerr)
		}
		return nil
	}

	ev := event.New(t.act.Kind, t.req.Actor, t.req.Origin, d.deps.Now())
	ev.Sales = sales
	return d.deliver(ctx, reply, ev)
}

// deliver runs Delivering → Reported. A ledger failure is a reported
// outcome, not an error.
func (d *Dispatcher) deliver(ctx context.Context, reply report.Reply, ev *event.Event) error {
	res, derr := d.deps.Ledger.Deliver(ctx, ev)
	if derr != nil {
		slog.Warn("event not saved in ledger", "event_id", ev.ID, "action", ev.Kind, "user", ev.Actor.Username, "err", derr)
	}

	msg := d.deps.Reporter.Confirmation(ev, res.Delivered)
	if err := d.deps.Reporter.Publish(ctx, reply, d.deps.Direct, ev, msg); err != nil {
		return err
	}
	slog.Info("event reported", "event_id", ev.ID, "action", ev.Kind, "user", ev.Actor.Username, "delivered", res.Delivered)

	if d.deps.Mirror != nil {
		if err := d.deps.Mirror.Publish(ctx, res.Record, res.Delivered); err != nil {
			slog.Warn("event mirror publish failed", "event_id", ev.ID, "err", err)
		}
	}
	return nil
}

// fail is the Errored state: log, then try to show a generic message through
// whichever reply primitive is still available.
func (d *Dispatcher) fail(ctx context.Context, s *session, req Request, cause error) {
	metrics.UnexpectedErrors.Inc()
	slog.Error("action failed", "action", req.ActionID, "user", req.Actor.Username, "err", cause)

	defer func() {
		if p := recover(); p != nil {
			slog.Error("could not send error message", "action", req.ActionID, "err", fmt.Errorf("panic: %v", p))
		}
	}()

	var err error
	if s.reply == nil {
		_, err = s.resp.Acknowledge(ctx, report.GenericFailure)
	} else {
		err = s.reply.Update(ctx, report.Message{Content: report.GenericFailure})
	}
	if err != nil {
		slog.Error("could not send error message", "action", req.ActionID, "err", err)
	}
}

func formFields(values map[string]string, names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, n := range names {
		v, ok := values[n]
		if !ok {
			return nil, fmt.Errorf("form submission missing field %q", n)
		}
		out[i] = v
	}
	return out, nil
}
