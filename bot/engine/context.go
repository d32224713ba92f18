package engine

import (
	"context"
	"log/slog"

	"github.com/bluesky-social/kyupikon/bot/annotate"
	"github.com/bluesky-social/kyupikon/bot/keyword"
	"github.com/bluesky-social/kyupikon/bot/policystore"
	"github.com/bluesky-social/kyupikon/platform"
)

// The primary interface exposed to rules. All other contexts derive from this "base" struct.
type BaseContext struct {
	// Actual golang "context.Context", if needed for timeouts etc
	Ctx context.Context
	// Any errors encountered while processing methods on this struct (or sub-types) get rolled up in this nullable field
	Err error
	// slog logger handle, with event-specific structured fields pre-populated. Pointer, but expected to never be nil.
	Logger *slog.Logger

	engine  *Engine // NOTE: pointer, but expected never to be nil
	effects *Effects
}

// Context for an inbound status message.
type MessageContext struct {
	BaseContext

	Message platform.Message
	// whether the message is addressed to the bot (and not a retweet)
	Directed bool

	policy *policystore.UserPolicy
}

// Context for a follow event targeting the bot.
type FollowContext struct {
	BaseContext

	Event platform.FollowEvent
}

func NewMessageContext(ctx context.Context, eng *Engine, msg platform.Message) MessageContext {
	return MessageContext{
		BaseContext: BaseContext{
			Ctx:     ctx,
			Logger:  eng.Logger.With("msg_id", msg.ID, "sender", msg.Sender.Handle),
			engine:  eng,
			effects: &Effects{},
		},
		Message:  msg,
		Directed: !msg.IsRetweet && keyword.IsDirected(msg.Text, eng.Config.SelfHandle),
	}
}

func NewFollowContext(ctx context.Context, eng *Engine, evt platform.FollowEvent) FollowContext {
	return FollowContext{
		BaseContext: BaseContext{
			Ctx:     ctx,
			Logger:  eng.Logger.With("follower", evt.Source.Handle),
			engine:  eng,
			effects: &Effects{},
		},
		Event: evt,
	}
}

func (c *BaseContext) recordErr(err error) {
	if c.Err == nil {
		c.Err = err
	}
}

// Returns the sender's policy, loading it on first use. Lookup failures are recorded in Err
// and the defaults returned.
func (c *MessageContext) Policy() policystore.UserPolicy {
	if c.policy == nil {
		p, err := policystore.Load(c.Ctx, c.engine.Policies, c.Message.Sender.ID)
		if err != nil {
			c.recordErr(err)
			p = &policystore.UserPolicy{}
		}
		c.policy = p
	}
	return *c.policy
}

// Reports whether the message text contains any of the patterns (folded comparison).
func (c *MessageContext) TextContains(patterns ...string) bool {
	return keyword.ContainsAny(c.Message.Text, patterns...)
}

// Reports whether the message text mentions one of the bot's keywords.
func (c *MessageContext) MatchesMentionKeywords() bool {
	if c.engine.Keywords == nil {
		return false
	}
	return c.engine.Keywords.Match(c.Message.Text)
}

func (c *BaseContext) ReplyCeiling() int64 {
	return c.engine.replyCeiling()
}

// Draws the next rotated content string from the named queue.
func (c *BaseContext) NextContent(queue string) string {
	return c.engine.Rotator.Next(c.Ctx, queue)
}

// Reports whether image annotation is configured.
func (c *BaseContext) CanAnnotate() bool {
	return c.engine.Annotator != nil
}

// Enqueues a reply to the event's author.
func (c *BaseContext) Reply(text string) {
	c.effects.addAction(Action{Kind: ActionReply, Text: text})
}

func (c *BaseContext) FollowAuthor() {
	c.effects.addAction(Action{Kind: ActionFollow})
}

func (c *BaseContext) UnfollowAuthor() {
	c.effects.addAction(Action{Kind: ActionUnfollow})
}

// Enqueues a favorite of the message, subject to the ledger and deny lists.
func (c *MessageContext) FavoriteMessage() {
	c.effects.addAction(Action{Kind: ActionFavorite, ContentID: c.Message.ID})
}

// Enqueues deletion of targetID on behalf of the sender. Which reply is sent depends on the
// outcome; the target is validated when the action is performed.
func (c *MessageContext) DeleteOnRequest(targetID string, texts DeleteTexts) {
	c.effects.addAction(Action{Kind: ActionDelete, ContentID: targetID, Delete: &texts})
}

// Enqueues signing the attached media and replying with the result attached. If signing fails,
// one of the failure texts is sent instead.
func (c *MessageContext) SignMedia(media platform.Media, anchor annotate.Anchor, text string, failure SignTexts) {
	c.effects.addAction(Action{Kind: ActionSignImage, Text: text, Media: &media, Anchor: anchor, Sign: &failure})
}

// Enqueues a policy flag update for the sender.
func (c *MessageContext) SetPolicyFlag(field policystore.Field, val bool) {
	c.effects.addPolicyUpdate(PolicyUpdate{User: c.Message.Sender.ID, Field: field, Flag: &val})
}

// Enqueues an increment of a counter field for the sender.
func (c *MessageContext) IncrementPolicy(field policystore.Field) {
	c.effects.addPolicyUpdate(PolicyUpdate{User: c.Message.Sender.ID, Field: field, Delta: 1})
}

// Enqueues an operator notification, sent after actions are performed.
func (c *BaseContext) Notify(msg string) {
	c.effects.Notifications = append(c.effects.Notifications, msg)
}

func (c *MessageContext) replyTarget() replyTarget {
	return replyTarget{
		Handle:    c.Message.Sender.Handle,
		User:      c.Message.Sender.ID,
		InReplyTo: c.Message.ID,
	}
}

// Emits a single log line summarizing rule execution for this event.
func (c *BaseContext) CanonicalLogLine() {
	c.Logger.Info("canonical-event-line",
		"rule", c.effects.Rule,
		"actions", c.effects.ActionKinds(),
		"policyUpdates", c.effects.PolicyUpdateNames(),
		"failedActions", c.effects.Failed,
		"notifications", len(c.effects.Notifications),
		"dryrun", c.engine.Config.DryRun,
	)
}
