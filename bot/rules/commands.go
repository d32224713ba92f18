package rules

import (
	"github.com/bluesky-social/kyupikon/bot/engine"
	"github.com/bluesky-social/kyupikon/bot/policystore"
)

func directedWith(pattern string) func(c *engine.MessageContext) bool {
	return func(c *engine.MessageContext) bool {
		return c.Directed && c.TextContains(pattern)
	}
}

var UnfollowRequestRule = engine.MessageRule{
	Name:  "unfollow-request",
	Match: directedWith(patternUnfollow),
	Handle: func(c *engine.MessageContext) error {
		c.UnfollowAuthor()
		c.Reply(textUnfollowed)
		return nil
	},
}

var FollowRequestRule = engine.MessageRule{
	Name:  "follow-request",
	Match: directedWith(patternFollow),
	Handle: func(c *engine.MessageContext) error {
		c.FollowAuthor()
		c.Reply(textFollowed)
		return nil
	},
}

var DenyFavoriteRule = engine.MessageRule{
	Name:  "deny-favorite",
	Match: directedWith(patternDenyFavorite),
	Handle: func(c *engine.MessageContext) error {
		c.SetPolicyFlag(policystore.FieldDenyFavorite, true)
		c.Reply(textDenyFavorite)
		return nil
	},
}

var AllowFavoriteRule = engine.MessageRule{
	Name:  "allow-favorite",
	Match: directedWith(patternAllowFavorite),
	Handle: func(c *engine.MessageContext) error {
		c.SetPolicyFlag(policystore.FieldDenyFavorite, false)
		c.Reply(textAllowFavorite)
		return nil
	},
}

var AllowAllRepliesRule = engine.MessageRule{
	Name:  "allow-all-replies",
	Match: directedWith(patternAllowAllReplies),
	Handle: func(c *engine.MessageContext) error {
		c.SetPolicyFlag(policystore.FieldAllowAllReplies, true)
		c.Reply(textAllowAllReplies)
		return nil
	},
}

var StopAllRepliesRule = engine.MessageRule{
	Name:  "stop-all-replies",
	Match: directedWith(patternStopAllReplies),
	Handle: func(c *engine.MessageContext) error {
		c.SetPolicyFlag(policystore.FieldAllowAllReplies, false)
		c.Reply(textStopAllReplies)
		return nil
	},
}

var DeleteRequestRule = engine.MessageRule{
	Name: "delete-request",
	Match: func(c *engine.MessageContext) bool {
		return c.Directed && c.TextContains(patternsDelete...)
	},
	Handle: func(c *engine.MessageContext) error {
		if c.Message.InReplyToID == "" {
			c.Logger.Info("delete requested without a target")
			c.Reply(textCannotDelete)
			return nil
		}
		c.DeleteOnRequest(c.Message.InReplyToID, engine.DeleteTexts{
			Deleted: textDeleted,
			Refused: textCannotDelete,
			Failed:  textDeleteFailed,
		})
		return nil
	},
}
