package fee

import (
	"errors"
	"testing"
)

func TestComputeFlatRate(t *testing.T) {
	calc := Calculator{Kind: CalcFlatRate, Amount: 123}
	got, err := calc.Compute(Basis{Total: 1000, Quantity: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 123 {
		t.Fatalf("expected 123, got %d", got)
	}
}

func TestComputeFlatPerItem(t *testing.T) {
	calc := Calculator{Kind: CalcFlatPerItem, Amount: 50}
	got, err := calc.Compute(Basis{Total: 1000, Quantity: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 200 {
		t.Fatalf("expected 200, got %d", got)
	}
}

func TestComputePercentRoundsHalfUp(t *testing.T) {
	cases := []struct {
		total int64
		bps   int32
		want  int64
	}{
		{10_000, 1000, 1000}, // 10% of 100.00
		{1001, 500, 50},      // 5% of 10.01 = 50.05 -> 50
		{1010, 500, 51},      // 5% of 10.10 = 50.5 -> 51
		{0, 500, 0},
	}
	for _, tc := range cases {
		calc := Calculator{Kind: CalcPercent, PercentBps: tc.bps}
		got, err := calc.Compute(Basis{Total: tc.total})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tc.want {
			t.Fatalf("percent(%d, %dbps) = %d, want %d", tc.total, tc.bps, got, tc.want)
		}
	}
}

func TestComputeMisconfigured(t *testing.T) {
	cases := []Calculator{
		{Kind: CalcPercent},
		{Kind: CalcFlatRate, Amount: -1},
		{Kind: CalcFlatPerItem, Amount: -1},
		{Kind: CalculatorKind("exotic")},
	}
	for _, calc := range cases {
		if _, err := calc.Compute(Basis{Total: 100, Quantity: 1}); !errors.Is(err, ErrCalculatorMisconfigured) {
			t.Fatalf("expected ErrCalculatorMisconfigured for %+v, got %v", calc, err)
		}
	}
}

func TestIncludedTax(t *testing.T) {
	// 10.00 at 10% inclusive: tax = 1000 - 1000/1.1 = 90.909... -> 91
	if got := IncludedTax(1000, 1000); got != 91 {
		t.Fatalf("expected 91, got %d", got)
	}
	if got := IncludedTax(1000, 0); got != 0 {
		t.Fatalf("expected zero tax without a rate, got %d", got)
	}
	if got := IncludedTax(0, 1000); got != 0 {
		t.Fatalf("expected zero tax on zero amount, got %d", got)
	}
}

func TestLabel(t *testing.T) {
	f := EnterpriseFee{Name: "Packing fee", EnterpriseName: "Fresh Hub"}
	if f.Label() != "Packing fee by Fresh Hub" {
		t.Fatalf("unexpected label %q", f.Label())
	}
	f = EnterpriseFee{FeeType: TypeTransport}
	if f.Label() != "transport fee" {
		t.Fatalf("unexpected fallback label %q", f.Label())
	}
}
