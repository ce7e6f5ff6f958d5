package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Variant is one sellable unit of a product.
type Variant struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	SKU       string    `json:"sku,omitempty"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit,omitempty"`
	Price     int64     `json:"price"`
	OnHand    int32     `json:"onHand"`
}

// Product is a supplier-owned listing. Tags drive storefront tag rule
// filtering.
type Product struct {
	ID          uuid.UUID `json:"id"`
	SupplierID  uuid.UUID `json:"supplierId"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Variants    []Variant `json:"variants"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CandidateID implements tagrule.Candidate.
func (p Product) CandidateID() uuid.UUID { return p.ID }

// TagList implements tagrule.Candidate.
func (p Product) TagList() []string { return p.Tags }

// RestrictVariants returns a copy of the product keeping only the variants in
// the allowed set.
func (p Product) RestrictVariants(allowed map[uuid.UUID]struct{}) Product {
	kept := make([]Variant, 0, len(p.Variants))
	for _, v := range p.Variants {
		if _, ok := allowed[v.ID]; ok {
			kept = append(kept, v)
		}
	}
	out := p
	out.Variants = kept
	return out
}
