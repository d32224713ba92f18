package engine

import (
	"context"
	"fmt"

	"github.com/bluesky-social/kyupikon/bot/queuestore"
	"github.com/bluesky-social/kyupikon/platform"
)

// Posts the next rotated content string as an unprompted status. Returns the post id.
func (eng *Engine) PostScheduled(ctx context.Context) (string, error) {
	text := eng.Rotator.Next(ctx, queuestore.QueuePost)
	id, err := eng.Client.PostReply(ctx, platform.PostInput{Text: text})
	if err != nil {
		jobRunCount.WithLabelValues("post", "error").Inc()
		return "", fmt.Errorf("posting scheduled content: %w", err)
	}
	eng.Rotator.InvalidateRecent(ctx)
	jobRunCount.WithLabelValues("post", "ok").Inc()
	eng.Logger.Info("posted scheduled content", "post_id", id, "text", text)
	return id, nil
}

// Searches public content and favorites each hit through the ledger. Retweets and the bot's
// own posts are skipped. Returns the number of new favorites.
//
// Deprecated: mention-triggered favoriting is the supported path; this scan is kept for
// deployments that explicitly enable it.
func (eng *Engine) ScanFavorites(ctx context.Context, query string, limit int) (int, error) {
	msgs, err := eng.Client.SearchContent(ctx, query, limit)
	if err != nil {
		jobRunCount.WithLabelValues("favorite-scan", "error").Inc()
		return 0, fmt.Errorf("searching content: %w", err)
	}
	n := 0
	for _, msg := range msgs {
		if msg.IsRetweet || msg.Relation == platform.RelationSelf || eng.isSelf(msg.Sender.Handle) {
			continue
		}
		outcome, err := eng.FavoriteContent(ctx, msg.ID, msg.Sender.ID, msg.Sender.Handle)
		if err != nil {
			// logged by FavoriteContent; background failures are dropped
			continue
		}
		if outcome == FavoriteDone {
			n++
		}
	}
	jobRunCount.WithLabelValues("favorite-scan", "ok").Inc()
	eng.Logger.Info("favorite scan complete", "query", query, "hits", len(msgs), "favorited", n)
	return n, nil
}
