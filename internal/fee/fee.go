package fee

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies what an enterprise charges the fee for.
type Type string

const (
	TypePacking     Type = "packing"
	TypeTransport   Type = "transport"
	TypeAdmin       Type = "admin"
	TypeSales       Type = "sales"
	TypeFundraising Type = "fundraising"
)

// Types returns the supported fee types.
func Types() []Type {
	return []Type{TypePacking, TypeTransport, TypeAdmin, TypeSales, TypeFundraising}
}

// Valid reports whether the fee type is supported.
func (t Type) Valid() bool {
	switch t {
	case TypePacking, TypeTransport, TypeAdmin, TypeSales, TypeFundraising:
		return true
	}
	return false
}

// EnterpriseFee is a pricing rule owned by an enterprise, attached either to
// an order-cycle exchange or to a direct product distribution link.
// IncludedTaxRateBps is the tax rate already contained in the fee amount.
type EnterpriseFee struct {
	ID                 uuid.UUID
	EnterpriseID       uuid.UUID
	EnterpriseName     string
	Name               string
	FeeType            Type
	IncludedTaxRateBps int32
	Calculator         Calculator
	CreatedAt          time.Time
}

// Label renders the adjustment label shown against an order, e.g.
// "Packing fee by Fresh Hub".
func (f EnterpriseFee) Label() string {
	name := f.Name
	if name == "" {
		name = string(f.FeeType) + " fee"
	}
	if f.EnterpriseName == "" {
		return name
	}
	return name + " by " + f.EnterpriseName
}

// ProductDistribution links a product directly to a distributor outside of
// any order cycle, carrying the single fee charged for that channel.
type ProductDistribution struct {
	ID            uuid.UUID
	ProductID     uuid.UUID
	DistributorID uuid.UUID
	Fee           EnterpriseFee
}
