package engine

// A named predicate/handler pair. Match must not have side effects; Handle records effects on
// the context.
type MessageRule struct {
	Name   string
	Match  func(c *MessageContext) bool
	Handle func(c *MessageContext) error
}

type FollowRuleFunc = func(c *FollowContext) error

// Holds configuration of which rules should be run, and dispatches events to them.
type RuleSet struct {
	// evaluated in order; the first rule whose Match returns true is the only one handled
	MessageRules []MessageRule
	// all run, in order
	FollowRules []FollowRuleFunc
}

// Runs the first matching message rule. Returns its name, or the empty string if no rule
// matched.
func (r *RuleSet) CallMessageRules(c *MessageContext) (string, error) {
	for _, rule := range r.MessageRules {
		if !rule.Match(c) {
			continue
		}
		if err := rule.Handle(c); err != nil {
			return rule.Name, err
		}
		return rule.Name, nil
	}
	return "", nil
}

func (r *RuleSet) CallFollowRules(c *FollowContext) error {
	for _, f := range r.FollowRules {
		if err := f(c); err != nil {
			return err
		}
	}
	return nil
}
