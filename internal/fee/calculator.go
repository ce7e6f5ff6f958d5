package fee

import (
	"errors"
	"fmt"
)

// ErrCalculatorMisconfigured is returned when a fee's pricing calculator
// cannot produce an amount. Recomputes treat it as fatal for the whole pass.
var ErrCalculatorMisconfigured = errors.New("fee: calculator misconfigured")

// CalculatorKind selects the pricing strategy of an enterprise fee.
type CalculatorKind string

const (
	// CalcFlatRate charges a fixed amount per application.
	CalcFlatRate CalculatorKind = "flat_rate"
	// CalcFlatPerItem charges a fixed amount per unit of quantity.
	CalcFlatPerItem CalculatorKind = "flat_per_item"
	// CalcPercent charges a fraction of the basis total, in basis points.
	CalcPercent CalculatorKind = "percent"
)

// Calculator is the pluggable pricing abstraction attached to a fee.
// Amounts are minor currency units; rates are basis points.
type Calculator struct {
	Kind       CalculatorKind
	Amount     int64
	PercentBps int32
}

// Basis carries the figures a calculator may charge against. For line-item
// scoped fees Total is the line total and Quantity the line quantity; for
// order scoped fees Total is the order's item total and Quantity the summed
// item count.
type Basis struct {
	Total    int64
	Quantity int32
}

// Compute returns the fee amount for the basis.
func (c Calculator) Compute(basis Basis) (int64, error) {
	switch c.Kind {
	case CalcFlatRate:
		if c.Amount < 0 {
			return 0, fmt.Errorf("%w: negative flat rate", ErrCalculatorMisconfigured)
		}
		return c.Amount, nil
	case CalcFlatPerItem:
		if c.Amount < 0 {
			return 0, fmt.Errorf("%w: negative per-item rate", ErrCalculatorMisconfigured)
		}
		if basis.Quantity < 0 {
			return 0, fmt.Errorf("%w: negative quantity", ErrCalculatorMisconfigured)
		}
		return c.Amount * int64(basis.Quantity), nil
	case CalcPercent:
		if c.PercentBps <= 0 {
			return 0, fmt.Errorf("%w: percent rate not set", ErrCalculatorMisconfigured)
		}
		if basis.Total < 0 {
			return 0, fmt.Errorf("%w: negative basis total", ErrCalculatorMisconfigured)
		}
		return roundedShare(basis.Total, int64(c.PercentBps), 10_000), nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrCalculatorMisconfigured, c.Kind)
	}
}

// roundedShare computes value*numerator/denominator rounded half-up to the
// nearest minor unit.
func roundedShare(value, numerator, denominator int64) int64 {
	product := value * numerator
	return (product + denominator/2) / denominator
}
