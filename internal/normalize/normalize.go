// Package normalize turns the raw text of a logout form into a SalesReport.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/shiftbot/internal/event"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidCount  = errors.New("invalid count")
)

// Form field identifiers shared with the platform adapter.
const (
	FieldModel = "modelo"
	FieldGross = "monto_bruto"
	FieldFans  = "fans_suscritos"
)

// ValidationError names the form field that failed and wraps one of the
// Err* sentinels.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

var decoration = strings.NewReplacer("$", "", ",", "", "#", "", " ", "")

// plainAmount excludes signs and exponent notation.
var plainAmount = regexp.MustCompile(`^\d+(\.\d+)?$`)

func clean(s string) string {
	return decoration.Replace(strings.TrimSpace(s))
}

// SalesReport validates the three raw logout fields.
func SalesReport(modelName, gross, fans string) (*event.SalesReport, error) {
	raw := clean(gross)
	if !plainAmount.MatchString(raw) {
		return nil, &ValidationError{Field: FieldGross, Value: gross, Err: ErrInvalidAmount}
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, &ValidationError{Field: FieldGross, Value: gross, Err: ErrInvalidAmount}
	}

	count, err := strconv.ParseInt(clean(fans), 10, 64)
	if err != nil || count < 0 {
		return nil, &ValidationError{Field: FieldFans, Value: fans, Err: ErrInvalidCount}
	}

	return &event.SalesReport{
		ModelName:      strings.TrimSpace(modelName),
		Gross:          amount,
		SubscribedFans: count,
	}, nil
}
