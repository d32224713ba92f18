package rules

import (
	"github.com/bluesky-social/kyupikon/bot/engine"
)

// The full rule set, in priority order. Reordering message rules changes which action fires
// for messages matching several patterns.
func DefaultRules() engine.RuleSet {
	rules := engine.RuleSet{
		MessageRules: []engine.MessageRule{
			UnfollowRequestRule,
			FollowRequestRule,
			DenyFavoriteRule,
			AllowFavoriteRule,
			AllowAllRepliesRule,
			StopAllRepliesRule,
			DeleteRequestRule,
			SignImageRule,
			SignNothingRule,
			GratitudeRule,
			DirectedFallbackRule,
			AmbientReplyRule,
		},
		FollowRules: []engine.FollowRuleFunc{
			NewFollowerFollowRule,
		},
	}
	return rules
}
