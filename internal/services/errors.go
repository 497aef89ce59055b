package services

import (
	"errors"
	"fmt"

	"github.com/h4ks-com/fieldops/internal/indicators"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")

	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)
	ErrItemNotFound = fmt.Errorf("%w: inventory item", ErrNotFound)
)

// IndicatorValidationError is returned when a completion payload fails its schema.
type IndicatorValidationError = indicators.ValidationError

// InvalidTransitionError reports a state change, or an operation named by
// Action, that the task's current state does not allow.
type InvalidTransitionError struct {
	From   string
	To     string
	Action string
}

func (e *InvalidTransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("cannot %s a task in state %s", e.Action, e.From)
	}
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

type LowStockError struct {
	ItemID    uint
	ItemCode  string
	Requested decimal.Decimal
	Available decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *LowStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %s, available %s, short %s",
		e.ItemCode, e.Requested, e.Available, e.Shortfall)
}

type MassBalanceError struct {
	HarvestedKg decimal.Decimal
	ExportKg    decimal.Decimal
	DomesticKg  decimal.Decimal
	RejectedKg  decimal.Decimal
}

func (e *MassBalanceError) Excess() decimal.Decimal {
	return e.ExportKg.Add(e.DomesticKg).Add(e.RejectedKg).Sub(e.HarvestedKg)
}

func (e *MassBalanceError) Error() string {
	return fmt.Sprintf("mass balance exceeded: export %s + domestic %s + rejected %s > harvested %s",
		e.ExportKg, e.DomesticKg, e.RejectedKg, e.HarvestedKg)
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// translateDBError maps gorm's translated driver errors onto the service kinds.
func translateDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

// ErrorKind names the category of err for metrics labels and logs.
func ErrorKind(err error) string {
	var (
		transition *InvalidTransitionError
		lowStock   *LowStockError
		mass       *MassBalanceError
		indicator  *IndicatorValidationError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &indicator):
		return "indicator_validation"
	case errors.As(err, &transition):
		return "invalid_transition"
	case errors.As(err, &lowStock):
		return "low_stock"
	case errors.As(err, &mass):
		return "mass_balance"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
