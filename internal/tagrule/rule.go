package tagrule

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidKind is returned when an unsupported rule kind is requested.
var ErrInvalidKind = errors.New("tagrule: unsupported rule kind")

// ErrNotFound is returned when a referenced rule does not exist.
var ErrNotFound = errors.New("tagrule: rule not found")

// Kind discriminates what a rule filters.
type Kind string

const (
	KindFilterProducts        Kind = "filter_products"
	KindFilterShippingMethods Kind = "filter_shipping_methods"
	KindFilterPaymentMethods  Kind = "filter_payment_methods"
	KindFilterOrderCycles     Kind = "filter_order_cycles"
)

// Kinds returns the closed set of supported rule kinds.
func Kinds() []Kind {
	return []Kind{
		KindFilterProducts,
		KindFilterShippingMethods,
		KindFilterPaymentMethods,
		KindFilterOrderCycles,
	}
}

// Valid reports whether the kind is one of the supported variants.
func (k Kind) Valid() bool {
	switch k {
	case KindFilterProducts, KindFilterShippingMethods, KindFilterPaymentMethods, KindFilterOrderCycles:
		return true
	}
	return false
}

// Visibility controls what happens to candidates matched by a rule.
type Visibility string

const (
	VisibilityVisible Visibility = "visible"
	VisibilityHidden  Visibility = "hidden"
)

// Rule is a declarative, enterprise-owned filter over tagged candidates.
//
// CustomerTags decide which viewers the rule applies to; PreferredTags decide
// which candidates it matches. A rule flagged IsDefault applies to viewers
// that no customer-tagged rule covers. Lower Priority wins; ties are broken
// by creation time so rule selection stays deterministic.
type Rule struct {
	ID                uuid.UUID
	EnterpriseID      uuid.UUID
	Kind              Kind
	IsDefault         bool
	Priority          int
	CustomerTags      []string
	PreferredTags     []string
	MatchedVisibility Visibility
	CreatedAt         time.Time
}

// TagsMatch reports whether the candidate's tags intersect the rule's
// preferred tags. Pure over its inputs.
func (r Rule) TagsMatch(candidateTags []string) bool {
	return intersects(r.PreferredTags, candidateTags)
}

// AppliesTo reports whether the rule targets a viewer carrying subjectTags.
func (r Rule) AppliesTo(subjectTags []string) bool {
	return intersects(r.CustomerTags, subjectTags)
}

// RejectMatched reports whether matched candidates are removed from view.
func (r Rule) RejectMatched() bool {
	return r.MatchedVisibility != VisibilityVisible
}

// ParseTagList splits a comma-separated tag string into trimmed tags.
func ParseTagList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

// JoinTagList renders tags back into the comma-separated storage form.
func JoinTagList(tags []string) string {
	return strings.Join(tags, ",")
}

// SortRules orders rules by priority, then creation time, then id. This is
// the canonical evaluation order everywhere rules are compared.
func SortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID.String() < rules[j].ID.String()
	})
}

// MappingFor groups rules by owning enterprise, each group in evaluation
// order. Enterprises without rules are present with an empty slice.
func MappingFor(enterpriseIDs []uuid.UUID, rules []Rule) map[uuid.UUID][]Rule {
	mapping := make(map[uuid.UUID][]Rule, len(enterpriseIDs))
	for _, id := range enterpriseIDs {
		mapping[id] = []Rule{}
	}
	for _, rule := range rules {
		if _, ok := mapping[rule.EnterpriseID]; !ok {
			continue
		}
		mapping[rule.EnterpriseID] = append(mapping[rule.EnterpriseID], rule)
	}
	for id := range mapping {
		SortRules(mapping[id])
	}
	return mapping
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, tag := range a {
		set[tag] = struct{}{}
	}
	for _, tag := range b {
		if _, ok := set[tag]; ok {
			return true
		}
	}
	return false
}
