package events

// Topic constants for domain events emitted by the platform.
const (
	TopicOrderCreated             = "order.created"
	TopicOrderContentsChanged     = "order.contents_changed"
	TopicOrderDistributionChanged = "order.distribution_changed"
	TopicOrderCompleted           = "order.completed"
	TopicOrderCanceled            = "order.canceled"
	TopicTagRulesChanged          = "enterprise.tag_rules_changed"
	TopicEnterpriseFeesChanged    = "enterprise.fees_changed"
)

// RecomputeTopics lists the topics that require the order's distribution
// charge to be rebuilt.
func RecomputeTopics() []string {
	return []string{
		TopicOrderContentsChanged,
		TopicOrderDistributionChanged,
	}
}

// DefaultTopics returns the canonical list of emitted topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderContentsChanged,
		TopicOrderDistributionChanged,
		TopicOrderCompleted,
		TopicOrderCanceled,
		TopicTagRulesChanged,
		TopicEnterpriseFeesChanged,
	}
}
