package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bluesky-social/kyupikon/bot/annotate"
	"github.com/bluesky-social/kyupikon/bot/keyword"
	"github.com/bluesky-social/kyupikon/bot/policystore"
	"github.com/bluesky-social/kyupikon/bot/rotator"
	"github.com/bluesky-social/kyupikon/bot/setstore"
	"github.com/bluesky-social/kyupikon/platform"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultReplyCeiling = 15

type Config struct {
	// handle of the bot's own account
	SelfHandle string
	// maximum number of fallback replies per user, until counters are reset
	ReplyCeiling int
	// encoded-size budget for annotated images, in bytes (0 means unlimited)
	PhotoSizeLimit int
	// directory for downloaded and annotated media
	WorkDir string
	// when set, Client is expected to be a DryRunClient; local claims on actions that did not
	// happen are released
	DryRun bool
}

// runtime for executing reply rules, managing per-user state, and performing platform actions.
//
// Policies, Sets, Rotator and Client must not be nil. Annotator, Keywords and Notifier are optional.
type Engine struct {
	Logger    *slog.Logger
	Rules     RuleSet
	Policies  policystore.PolicyStore
	Sets      setstore.SetStore
	Rotator   *rotator.Rotator
	Client    platform.Client
	Annotator *annotate.Annotator
	Keywords  *keyword.Matcher
	Notifier  Notifier
	Config    Config
}

// Classifies a single inbound message and performs the resulting actions. Runs to completion
// once started; ctx only bounds the individual platform and storage calls.
func (eng *Engine) ProcessMessage(ctx context.Context, msg *platform.Message) (err error) {
	// similar to an HTTP server, we want to recover any panics from rule execution
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("bot event execution exception", "err", r, "msg_id", msg.ID, "sender", msg.Sender.Handle)
			eventErrorCount.WithLabelValues("status").Inc()
			err = fmt.Errorf("rule execution panic: %v", r)
		}
	}()

	ctx, span := otel.Tracer("engine").Start(ctx, "ProcessMessage", trace.WithAttributes(attribute.String("msg_id", msg.ID)))
	defer span.End()

	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues("status").Observe(time.Since(start).Seconds())
	}()
	eventProcessCount.WithLabelValues("status").Inc()

	if eng.isSelf(msg.Sender.Handle) {
		msg.Relation = platform.RelationSelf
	}
	if msg.Relation == platform.RelationSelf {
		eng.Logger.Debug("ignoring own message", "msg_id", msg.ID)
		return nil
	}

	c := NewMessageContext(ctx, eng, *msg)
	rule, err := eng.Rules.CallMessageRules(&c)
	if err != nil {
		eventErrorCount.WithLabelValues("status").Inc()
		return fmt.Errorf("rule execution failed: %w", err)
	}
	span.SetAttributes(attribute.String("rule", rule), attribute.String("sender", msg.Sender.Handle))
	if c.Err != nil {
		// lookups failed; effects may be based on defaults
		c.Logger.Warn("state lookup error during rule execution", "err", c.Err)
	}
	if rule != "" {
		ruleFiredCount.WithLabelValues(rule).Inc()
	}
	c.effects.Rule = rule

	// logged after persisting, so the line shows which actions failed
	err = eng.persistEffects(ctx, &c.BaseContext, c.replyTarget())
	c.CanonicalLogLine()
	if err != nil {
		eventErrorCount.WithLabelValues("status").Inc()
		return err
	}
	return nil
}

// Handles a follow event. Events whose target is not the bot are ignored.
func (eng *Engine) ProcessFollow(ctx context.Context, evt *platform.FollowEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("bot event execution exception", "err", r, "source", evt.Source.Handle)
			eventErrorCount.WithLabelValues("follow").Inc()
			err = fmt.Errorf("rule execution panic: %v", r)
		}
	}()

	ctx, span := otel.Tracer("engine").Start(ctx, "ProcessFollow")
	defer span.End()

	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues("follow").Observe(time.Since(start).Seconds())
	}()
	eventProcessCount.WithLabelValues("follow").Inc()

	if !eng.isSelf(evt.Target.Handle) || eng.isSelf(evt.Source.Handle) {
		eng.Logger.Debug("ignoring follow event not targeting bot", "source", evt.Source.Handle, "target", evt.Target.Handle)
		return nil
	}

	c := NewFollowContext(ctx, eng, *evt)
	if err := eng.Rules.CallFollowRules(&c); err != nil {
		eventErrorCount.WithLabelValues("follow").Inc()
		return fmt.Errorf("rule execution failed: %w", err)
	}
	c.effects.Rule = "follow"

	err = eng.persistEffects(ctx, &c.BaseContext, replyTarget{Handle: evt.Source.Handle, User: evt.Source.ID})
	c.CanonicalLogLine()
	if err != nil {
		eventErrorCount.WithLabelValues("follow").Inc()
		return err
	}
	return nil
}

func (eng *Engine) isSelf(handle string) bool {
	return eng.Config.SelfHandle != "" && strings.EqualFold(handle, eng.Config.SelfHandle)
}

func (eng *Engine) replyCeiling() int64 {
	if eng.Config.ReplyCeiling <= 0 {
		return DefaultReplyCeiling
	}
	return int64(eng.Config.ReplyCeiling)
}
