package cycle

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/foodshed/market-api/internal/fee"
)

func TestHasVariantOnlyCountsOutgoing(t *testing.T) {
	variant := uuid.New()
	distributor := uuid.New()
	oc := OrderCycle{
		Exchanges: []Exchange{
			{Direction: Incoming, VariantIDs: []uuid.UUID{variant}},
		},
	}
	if oc.HasVariant(variant) {
		t.Fatal("incoming-only variants are not available for sale")
	}
	oc.Exchanges = append(oc.Exchanges, Exchange{
		Direction:  Outgoing,
		ReceiverID: distributor,
		VariantIDs: []uuid.UUID{variant},
	})
	if !oc.HasVariant(variant) {
		t.Fatal("expected variant via outgoing exchange")
	}
	if !oc.HasDistributor(distributor) {
		t.Fatal("expected distributor via outgoing exchange")
	}
}

func TestFeesForVariantOrdersIncomingBeforeOutgoing(t *testing.T) {
	variant := uuid.New()
	distributor := uuid.New()
	supplierFee := fee.EnterpriseFee{ID: uuid.New(), Name: "Supplier packing"}
	hubFee := fee.EnterpriseFee{ID: uuid.New(), Name: "Hub transport"}
	oc := OrderCycle{
		Exchanges: []Exchange{
			{Direction: Outgoing, ReceiverID: distributor, VariantIDs: []uuid.UUID{variant}, Fees: []fee.EnterpriseFee{hubFee}},
			{Direction: Incoming, VariantIDs: []uuid.UUID{variant}, Fees: []fee.EnterpriseFee{supplierFee}},
		},
	}

	fees := oc.FeesForVariant(distributor, variant)
	if len(fees) != 2 {
		t.Fatalf("expected 2 fees, got %d", len(fees))
	}
	if fees[0].ID != supplierFee.ID || fees[1].ID != hubFee.ID {
		t.Fatal("expected incoming fees before outgoing fees")
	}

	other := uuid.New()
	if got := oc.FeesForVariant(other, variant); len(got) != 1 {
		t.Fatalf("expected only incoming fees for a foreign distributor, got %d", len(got))
	}
}

func TestEarliestClosingTimes(t *testing.T) {
	distributor := uuid.New()
	now := time.Now()
	soon := now.Add(2 * time.Hour)
	later := now.Add(48 * time.Hour)
	cycles := []OrderCycle{
		{
			OrdersOpenAt:  now.Add(-time.Hour),
			OrdersCloseAt: later,
			Exchanges:     []Exchange{{Direction: Outgoing, ReceiverID: distributor}},
		},
		{
			OrdersOpenAt:  now.Add(-time.Hour),
			OrdersCloseAt: soon,
			Exchanges:     []Exchange{{Direction: Outgoing, ReceiverID: distributor}},
		},
		{
			// Closed cycle must not contribute.
			OrdersOpenAt:  now.Add(-48 * time.Hour),
			OrdersCloseAt: now.Add(-time.Hour),
			Exchanges:     []Exchange{{Direction: Outgoing, ReceiverID: distributor}},
		},
	}
	closing := EarliestClosingTimes(cycles, now)
	if got, ok := closing[distributor]; !ok || !got.Equal(soon) {
		t.Fatalf("expected earliest close %v, got %v", soon, got)
	}
}
