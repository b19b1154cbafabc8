// Package report renders shift confirmations and delivers them to the acting
// user through the in-place reply and a private copy.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/shiftbot/internal/event"
	"github.com/gyaneshwarpardhi/shiftbot/internal/metrics"
	"github.com/gyaneshwarpardhi/shiftbot/internal/normalize"
)

const (
	DefaultSimpleTTL = 5 * time.Second
	DefaultSalesTTL  = 8 * time.Second

	removeTimeout = 5 * time.Second
)

// Status markers shown in the confirmation footer.
const (
	FooterSaved       = "✅ Registro actualizado en Google Sheets"
	FooterSalesSaved  = "✅ Logout y ventas registrados en Google Sheets"
	FooterNotSaved    = "⚠️ Error guardando en Google Sheets"
	GenericFailure    = "❌ Error procesando la interacción. Inténtalo nuevamente en unos segundos."
	invalidAmountText = "❌ **Error**: El monto bruto debe ser un número válido mayor o igual a 0."
	invalidCountText  = "❌ **Error**: Los fans suscritos deben ser un número entero mayor o igual a 0."
)

// Config tunes the Reporter.
type Config struct {
	Location  *time.Location
	SimpleTTL time.Duration
	SalesTTL  time.Duration
	// AfterFunc schedules removals; defaults to time.AfterFunc.
	AfterFunc func(time.Duration, func())
}

// Reporter builds confirmations and owns their lifecycle after the ledger
// call returns.
type Reporter struct {
	loc       *time.Location
	zone      string
	simpleTTL time.Duration
	salesTTL  time.Duration
	after     func(time.Duration, func())
}

// New creates a Reporter, filling unset fields with defaults.
func New(cfg Config) *Reporter {
	r := &Reporter{
		loc:       cfg.Location,
		simpleTTL: cfg.SimpleTTL,
		salesTTL:  cfg.SalesTTL,
		after:     cfg.AfterFunc,
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	if r.simpleTTL <= 0 {
		r.simpleTTL = DefaultSimpleTTL
	}
	if r.salesTTL <= 0 {
		r.salesTTL = DefaultSalesTTL
	}
	if r.after == nil {
		r.after = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	r.zone = strings.ReplaceAll(path.Base(r.loc.String()), "_", " ")
	return r
}

// TTL is how long a confirmation of kind k stays visible.
func (r *Reporter) TTL(k event.Kind) time.Duration {
	if k == event.KindLogout {
		return r.salesTTL
	}
	return r.simpleTTL
}

// Processing is the immediate acknowledgment text for k.
func (r *Reporter) Processing(k event.Kind) string {
	if k == event.KindLogout {
		return "🔴 **Procesando logout y reporte de ventas...** ⏳"
	}
	p := present(k)
	return fmt.Sprintf("%s **%s** procesando...", p.emoji, p.name)
}

// LocalTime renders t in the reporting time zone.
func (r *Reporter) LocalTime(t time.Time) string {
	return t.In(r.loc).Format("02/01/2006, 15:04:05")
}

// Confirmation renders ev. The content is the same whether or not the ledger
// accepted it; only the footer changes.
func (r *Reporter) Confirmation(ev *event.Event, delivered bool) Message {
	p := present(ev.Kind)
	when := Field{Name: fmt.Sprintf("⏰ Hora (%s)", r.zone), Value: r.LocalTime(ev.OccurredAt), Inline: true}
	user := Field{Name: "👤 Usuario", Value: ev.Actor.Username, Inline: true}

	msg := Message{
		Content:     fmt.Sprintf("%s **%s** registrado exitosamente", p.emoji, p.name),
		Title:       fmt.Sprintf("%s %s Registrado", p.emoji, p.name),
		Description: fmt.Sprintf("**%s registrado exitosamente**", p.name),
		Color:       p.color,
		Fields:      []Field{user, when},
		Footer:      FooterSaved,
		Timestamp:   ev.OccurredAt,
	}

	if s := ev.Sales; s != nil && ev.Kind == event.KindLogout {
		msg.Content = "🔴 **Logout y reporte de ventas registrado**"
		msg.Title = "🔴 Logout y Ventas Registrados"
		msg.Description = "**Jornada finalizada con reporte de ventas**"
		msg.Fields = []Field{
			user,
			{Name: "📝 Modelo", Value: s.ModelName, Inline: true},
			{Name: "💵 Monto Bruto", Value: Money(s.Gross), Inline: true},
			{Name: "💰 Monto Neto (80%)", Value: Money(s.Net()), Inline: true},
			{Name: "👥 Fans Suscritos", Value: humanize.Comma(s.SubscribedFans), Inline: true},
			when,
		}
		msg.Footer = FooterSalesSaved
	}

	if !delivered {
		msg.Footer = FooterNotSaved
	}
	return msg
}

// Money renders an amount as "$1,234.50" without going through float64.
func Money(v decimal.Decimal) string {
	fixed := v.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	n, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return "$" + fixed
	}
	return "$" + humanize.BigComma(n) + "." + frac
}

// ValidationFailure is the field-specific message for a rejected form.
func ValidationFailure(err error) Message {
	switch {
	case errors.Is(err, normalize.ErrInvalidAmount):
		return Message{Content: invalidAmountText}
	case errors.Is(err, normalize.ErrInvalidCount):
		return Message{Content: invalidCountText}
	}
	return Message{Content: GenericFailure}
}

// Publish replaces the acknowledgment with msg, schedules its removal and
// sends the private copy. Only a failed in-place update is returned; the
// removal and the private copy are best-effort.
func (r *Reporter) Publish(ctx context.Context, reply Reply, dm DirectMessenger, ev *event.Event, msg Message) error {
	if err := reply.Update(ctx, msg); err != nil {
		return fmt.Errorf("update confirmation: %w", err)
	}
	r.ScheduleRemoval(reply, r.TTL(ev.Kind))

	if dm == nil {
		return nil
	}
	if err := dm.SendDirect(ctx, ev.Actor, msg); err != nil {
		metrics.BestEffortFailures.WithLabelValues("direct_message").Inc()
		slog.Warn("could not send direct message", "event_id", ev.ID, "user", ev.Actor.Username, "err", err)
		return nil
	}
	slog.Info("direct message sent", "event_id", ev.ID, "user", ev.Actor.Username)
	return nil
}

// ScheduleRemoval deletes reply after d. Failures are swallowed.
func (r *Reporter) ScheduleRemoval(reply Reply, d time.Duration) {
	r.after(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
		defer cancel()
		if err := reply.Remove(ctx); err != nil {
			metrics.BestEffortFailures.WithLabelValues("removal").Inc()
			slog.Debug("could not remove confirmation", "err", err)
		}
	})
}
