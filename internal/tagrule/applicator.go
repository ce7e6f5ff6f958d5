package tagrule

import "github.com/google/uuid"

// Candidate is anything a rule can hide: shipping methods, payment methods,
// product variants and order cycles all satisfy it.
type Candidate interface {
	CandidateID() uuid.UUID
	TagList() []string
}

// Filter narrows candidates for a viewer carrying subjectTags using the
// enterprise's rules of the given kind.
//
// Rule selection: the highest-priority rule whose customer tags intersect
// subjectTags wins; when none applies the default rule is used; with no
// default no filtering occurs. The chosen rule's preferred tags partition the
// candidates, and matched ones are dropped when the rule hides them. The
// result is deduplicated by candidate id preserving first-seen order, since
// callers aggregate candidates from several enterprises in a chain.
//
// Filter is pure and safe for concurrent use.
func Filter[T Candidate](rules []Rule, kind Kind, subjectTags []string, candidates []T) ([]T, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if len(candidates) == 0 {
		return []T{}, nil
	}

	rule, ok := selectRule(rules, kind, subjectTags)
	if !ok {
		return dedupe(candidates), nil
	}

	kept := make([]T, 0, len(candidates))
	for _, candidate := range candidates {
		if rule.RejectMatched() && rule.TagsMatch(candidate.TagList()) {
			continue
		}
		kept = append(kept, candidate)
	}
	return dedupe(kept), nil
}

func selectRule(rules []Rule, kind Kind, subjectTags []string) (Rule, bool) {
	ofKind := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.Kind == kind {
			ofKind = append(ofKind, rule)
		}
	}
	SortRules(ofKind)

	for _, rule := range ofKind {
		if !rule.IsDefault && rule.AppliesTo(subjectTags) {
			return rule, true
		}
	}
	for _, rule := range ofKind {
		if rule.IsDefault {
			return rule, true
		}
	}
	return Rule{}, false
}

func dedupe[T Candidate](candidates []T) []T {
	seen := make(map[uuid.UUID]struct{}, len(candidates))
	out := make([]T, 0, len(candidates))
	for _, candidate := range candidates {
		id := candidate.CandidateID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, candidate)
	}
	return out
}
