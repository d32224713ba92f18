package engine

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bluesky-social/kyupikon/bot/policystore"
	"github.com/bluesky-social/kyupikon/platform"

	"github.com/google/uuid"
)

// who actions and replies are directed at
type replyTarget struct {
	Handle    string
	User      string
	InReplyTo string
}

// Performs all collected effects, in order. Policy updates are all single-field upserts or
// atomic increments, and are kept even when a later action fails (a failed reply still counts
// against the reply ceiling). A failed action is logged, counted and recorded in the effects,
// but does not stop later actions; only storage failures for policy updates are returned.
func (eng *Engine) persistEffects(ctx context.Context, c *BaseContext, target replyTarget) error {
	eff := c.effects

	for _, u := range eff.PolicyUpdates {
		if err := eng.persistPolicyUpdate(ctx, u); err != nil {
			return fmt.Errorf("updating policy %s for %s: %w", u.Field, u.User, err)
		}
	}

	for _, a := range eff.Actions {
		err := eng.performAction(ctx, c, target, a)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			eff.Failed = append(eff.Failed, string(a.Kind))
			c.Logger.Error("failed to perform action", "action", a.Kind, "err", err, "transient", platform.IsTransient(err))
		}
		actionCount.WithLabelValues(string(a.Kind), outcome).Inc()
	}

	if eng.Notifier != nil {
		for _, msg := range eff.Notifications {
			if err := eng.Notifier.Notify(ctx, msg); err != nil {
				c.Logger.Warn("failed to send notification", "err", err)
			}
		}
	}
	return nil
}

func (eng *Engine) persistPolicyUpdate(ctx context.Context, u PolicyUpdate) error {
	if u.Flag != nil {
		return policystore.SetFlag(ctx, eng.Policies, u.User, u.Field, *u.Flag)
	}
	_, err := eng.Policies.Increment(ctx, u.User, u.Field, u.Delta)
	return err
}

func (eng *Engine) performAction(ctx context.Context, c *BaseContext, target replyTarget, a Action) error {
	switch a.Kind {
	case ActionReply:
		_, err := eng.reply(ctx, target, a.Text, "")
		return err
	case ActionFollow:
		return eng.Client.Follow(ctx, target.Handle)
	case ActionUnfollow:
		return eng.Client.Unfollow(ctx, target.Handle)
	case ActionFavorite:
		_, err := eng.FavoriteContent(ctx, a.ContentID, target.User, target.Handle)
		return err
	case ActionDelete:
		return eng.deleteOnRequest(ctx, c, target, a)
	case ActionSignImage:
		return eng.signImage(ctx, c, target, a)
	default:
		return fmt.Errorf("unknown action kind: %s", a.Kind)
	}
}

func (eng *Engine) reply(ctx context.Context, target replyTarget, text, mediaPath string) (string, error) {
	id, err := eng.Client.PostReply(ctx, platform.PostInput{
		Text:        text,
		ToHandle:    target.Handle,
		InReplyToID: target.InReplyTo,
		MediaPath:   mediaPath,
	})
	if err != nil {
		return "", err
	}
	eng.Rotator.InvalidateRecent(ctx)
	return id, nil
}

// Deletes a bot post on the requester's behalf. Only posts by the bot that were replies to the
// requester may be deleted. Every outcome is answered with one reply; nothing is retried.
func (eng *Engine) deleteOnRequest(ctx context.Context, c *BaseContext, target replyTarget, a Action) error {
	texts := a.Delete
	if texts == nil {
		return fmt.Errorf("delete action without reply texts")
	}

	answer := func(text string, cause error) error {
		if _, err := eng.reply(ctx, target, text, ""); err != nil {
			return err
		}
		return cause
	}

	post, err := eng.Client.GetMessage(ctx, a.ContentID)
	if platform.IsNotFound(err) {
		c.Logger.Info("delete target not found", "target", a.ContentID)
		return answer(texts.Refused, nil)
	} else if err != nil {
		return answer(texts.Failed, fmt.Errorf("fetching delete target: %w", err))
	}

	if post.InReplyToUserID != target.User || !eng.isSelf(post.Sender.Handle) {
		c.Logger.Info("refusing delete request", "target", a.ContentID, "target_author", post.Sender.Handle, "target_reply_user", post.InReplyToUserID)
		return answer(texts.Refused, nil)
	}

	err = eng.Client.DeleteContent(ctx, a.ContentID)
	if platform.IsNotFound(err) {
		return answer(texts.Refused, nil)
	} else if err != nil {
		return answer(texts.Failed, fmt.Errorf("deleting content: %w", err))
	}
	return answer(texts.Deleted, nil)
}

// Signs the attached image and replies with the result. Every failure is answered with an
// apology, so a sign request never goes unanswered; nothing is retried.
func (eng *Engine) signImage(ctx context.Context, c *BaseContext, target replyTarget, a Action) error {
	outPath, err := eng.annotateMedia(ctx, c, a)
	if err != nil {
		if a.Sign == nil {
			return err
		}
		text := a.Sign.Failed
		if platform.IsTransient(err) && a.Sign.Retry != "" {
			text = a.Sign.Retry
		}
		if _, rerr := eng.reply(ctx, target, text, ""); rerr != nil {
			return fmt.Errorf("%w (apology reply failed: %v)", err, rerr)
		}
		return err
	}
	defer os.Remove(outPath)

	_, err = eng.reply(ctx, target, a.Text, outPath)
	return err
}

// Downloads the attached image and writes a signed copy, returning its path.
func (eng *Engine) annotateMedia(ctx context.Context, c *BaseContext, a Action) (string, error) {
	if eng.Annotator == nil || a.Media == nil {
		return "", fmt.Errorf("image signing not configured")
	}

	raw, err := eng.Client.FetchMedia(ctx, a.Media.URL)
	if err != nil {
		return "", fmt.Errorf("downloading media: %w", err)
	}

	workDir := eng.Config.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", err
	}
	ext := path.Ext(strings.SplitN(a.Media.URL, "?", 2)[0])
	if ext == "" {
		ext = ".img"
	}
	inPath := filepath.Join(workDir, uuid.NewString()+ext)
	if err := os.WriteFile(inPath, raw, 0o644); err != nil {
		return "", fmt.Errorf("saving media: %w", err)
	}
	defer os.Remove(inPath)

	budget := eng.Config.PhotoSizeLimit
	if budget <= 0 {
		if conf, err := eng.Client.Configuration(ctx); err != nil {
			c.Logger.Warn("failed to fetch platform configuration; signing without size limit", "err", err)
		} else {
			budget = conf.PhotoSizeLimit
		}
	}

	outPath, err := eng.Annotator.AnnotateFile(inPath, a.Anchor, budget)
	if err != nil {
		return "", fmt.Errorf("signing image: %w", err)
	}
	c.Logger.Info("signed image", "anchor", a.Anchor.String(), "budget", budget)
	return outPath, nil
}
