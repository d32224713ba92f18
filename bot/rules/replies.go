package rules

import (
	"fmt"

	"github.com/bluesky-social/kyupikon/bot/engine"
	"github.com/bluesky-social/kyupikon/bot/policystore"
	"github.com/bluesky-social/kyupikon/bot/queuestore"
)

var GratitudeRule = engine.MessageRule{
	Name: "gratitude",
	Match: func(c *engine.MessageContext) bool {
		return c.Directed && c.TextContains(patternsGratitude...)
	},
	Handle: func(c *engine.MessageContext) error {
		c.Reply(textThanks)
		return nil
	},
}

// Throttled rotated reply to any other directed message.
var DirectedFallbackRule = engine.MessageRule{
	Name: "directed-fallback",
	Match: func(c *engine.MessageContext) bool {
		return c.Directed
	},
	Handle: func(c *engine.MessageContext) error {
		p := c.Policy()
		if p.DenyReply {
			c.Logger.Debug("user opted out of replies")
			return nil
		}
		ceiling := c.ReplyCeiling()
		if p.ReplyCount >= ceiling {
			c.Logger.Debug("user reached reply ceiling", "count", p.ReplyCount, "ceiling", ceiling)
			return nil
		}
		c.Reply(c.NextContent(queuestore.QueueReply))
		c.IncrementPolicy(policystore.FieldReplyCount)
		if p.ReplyCount+1 == ceiling {
			c.Notify(fmt.Sprintf("@%s reached the reply ceiling (%d)", c.Message.Sender.Handle, ceiling))
		}
		return nil
	},
}

// Replies to messages not addressed to the bot: unconditionally for users who asked for it,
// otherwise only when the bot's keywords are mentioned (and then the message is favorited too).
var AmbientReplyRule = engine.MessageRule{
	Name: "ambient-reply",
	Match: func(c *engine.MessageContext) bool {
		if c.Directed {
			return false
		}
		if c.Policy().AllowAllReplies {
			return true
		}
		return !c.Message.IsRetweet && c.MatchesMentionKeywords()
	},
	Handle: func(c *engine.MessageContext) error {
		c.Reply(c.NextContent(queuestore.QueueReply))
		if !c.Policy().AllowAllReplies {
			c.FavoriteMessage()
		}
		return nil
	},
}
