package rules

import (
	"github.com/bluesky-social/kyupikon/bot/annotate"
	"github.com/bluesky-social/kyupikon/bot/engine"
	"github.com/bluesky-social/kyupikon/bot/queuestore"
)

var SignImageRule = engine.MessageRule{
	Name: "sign-image",
	Match: func(c *engine.MessageContext) bool {
		return c.Directed && c.TextContains(patternSign) && len(c.Message.Media) > 0
	},
	Handle: func(c *engine.MessageContext) error {
		anchor := annotate.ParsePosition(c.Message.Text)
		for _, m := range c.Message.Media {
			if !m.IsPhoto() {
				c.Reply(textNotAnImage)
				continue
			}
			if !c.CanAnnotate() {
				c.Logger.Warn("sign requested but no signature image configured")
				c.Reply(textCannotSign)
				continue
			}
			c.SignMedia(m, anchor, c.NextContent(queuestore.QueueReply), engine.SignTexts{
				Failed: textCannotSign,
				Retry:  textSignRetry,
			})
		}
		return nil
	},
}

var SignNothingRule = engine.MessageRule{
	Name: "sign-nothing",
	Match: func(c *engine.MessageContext) bool {
		return c.Directed && c.TextContains(patternSign) && len(c.Message.Media) == 0
	},
	Handle: func(c *engine.MessageContext) error {
		c.Reply(textNothingToSign)
		return nil
	},
}
