package rules

import (
	"github.com/bluesky-social/kyupikon/bot/engine"
)

var _ engine.FollowRuleFunc = NewFollowerFollowRule

// Greets new followers. Protected accounts are followed back, since the bot could not
// otherwise see their messages; public accounts never are.
func NewFollowerFollowRule(c *engine.FollowContext) error {
	src := c.Event.Source
	switch {
	case src.Protected:
		c.FollowAuthor()
		c.Reply(textFollowThanksFollowing)
	case c.Event.SourceFollowedByTarget:
		c.Reply(textFollowThanksFollowing)
	default:
		c.Reply(textFollowThanks)
	}
	return nil
}
