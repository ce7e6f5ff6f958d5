package enterprise

import (
	"time"

	"github.com/google/uuid"
)

// Enterprise is a producer, hub or shop on the marketplace.
type Enterprise struct {
	ID            uuid.UUID
	Name          string
	OwnerID       uuid.UUID
	IsDistributor bool
	Tags          []string
	CreatedAt     time.Time
}

// ShippingMethod is a distributor-owned delivery or pickup option.
type ShippingMethod struct {
	ID                 uuid.UUID
	EnterpriseID       uuid.UUID
	Name               string
	RequireShipAddress bool
	Tags               []string
	CreatedAt          time.Time
}

// CandidateID implements tagrule.Candidate.
func (m ShippingMethod) CandidateID() uuid.UUID { return m.ID }

// TagList implements tagrule.Candidate.
func (m ShippingMethod) TagList() []string { return m.Tags }

// PaymentMethod is a distributor-owned way to pay.
type PaymentMethod struct {
	ID           uuid.UUID
	EnterpriseID uuid.UUID
	Name         string
	Active       bool
	Tags         []string
	CreatedAt    time.Time
}

// CandidateID implements tagrule.Candidate.
func (m PaymentMethod) CandidateID() uuid.UUID { return m.ID }

// TagList implements tagrule.Candidate.
func (m PaymentMethod) TagList() []string { return m.Tags }

// Customer is a shopper's standing relationship with one enterprise. The tag
// list drives rule selection when that enterprise's candidates are filtered.
type Customer struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	EnterpriseID uuid.UUID
	Email        string
	Tags         []string
	CreatedAt    time.Time
}
