package engine

import (
	"context"
	"fmt"

	"github.com/bluesky-social/kyupikon/bot/policystore"
	"github.com/bluesky-social/kyupikon/bot/setstore"
	"github.com/bluesky-social/kyupikon/platform"
)

type FavoriteOutcome string

const (
	FavoriteDone        FavoriteOutcome = "favorited"
	FavoriteAlreadyDone FavoriteOutcome = "already-done"
	// already present in the ledger; the platform was not called
	FavoriteClaimed FavoriteOutcome = "claimed"
	FavoriteDenied  FavoriteOutcome = "denied"
	FavoriteDryRun  FavoriteOutcome = "dryrun"
	FavoriteFailed  FavoriteOutcome = "failed"
)

// Reports whether the author has opted out of favorites, either via their policy record or
// the static deny set (which may list handles or IDs).
func (eng *Engine) favoriteDenied(ctx context.Context, authorID, authorHandle string) (bool, error) {
	denied, err := policystore.GetFlag(ctx, eng.Policies, authorID, policystore.FieldDenyFavorite)
	if err != nil || denied {
		return denied, err
	}
	for _, v := range []string{authorID, authorHandle} {
		if v == "" {
			continue
		}
		in, err := eng.Sets.InSet(ctx, setstore.SetDenyFavorite, v)
		if err != nil || in {
			return in, err
		}
	}
	return false, nil
}

// Favorites a piece of content at most once. The content id is claimed in the ledger before
// the platform is called, so concurrent or repeated attempts (including resumed scans) cannot
// double-favorite. A hard platform failure releases the claim; "already favorited" keeps it.
func (eng *Engine) FavoriteContent(ctx context.Context, contentID, authorID, authorHandle string) (FavoriteOutcome, error) {
	logger := eng.Logger.With("content_id", contentID, "author", authorHandle)

	outcome, err := eng.favoriteContent(ctx, contentID, authorID, authorHandle)
	favoriteCount.WithLabelValues(string(outcome)).Inc()
	if err != nil {
		logger.Warn("favorite failed", "err", err, "transient", platform.IsTransient(err))
	} else {
		logger.Debug("favorite processed", "outcome", outcome)
	}
	return outcome, err
}

func (eng *Engine) favoriteContent(ctx context.Context, contentID, authorID, authorHandle string) (FavoriteOutcome, error) {
	if contentID == "" {
		return FavoriteFailed, fmt.Errorf("empty content id")
	}

	denied, err := eng.favoriteDenied(ctx, authorID, authorHandle)
	if err != nil {
		return FavoriteFailed, fmt.Errorf("checking favorite deny lists: %w", err)
	}
	if denied {
		return FavoriteDenied, nil
	}

	claimed, err := eng.Sets.Add(ctx, setstore.SetFavorited, contentID)
	if err != nil {
		return FavoriteFailed, fmt.Errorf("claiming favorite: %w", err)
	}
	if !claimed {
		return FavoriteClaimed, nil
	}

	res, err := eng.Client.Favorite(ctx, contentID)
	if err != nil || eng.Config.DryRun {
		if rerr := eng.Sets.Remove(ctx, setstore.SetFavorited, contentID); rerr != nil {
			eng.Logger.Error("failed to release favorite claim", "content_id", contentID, "err", rerr)
		}
		if err != nil {
			return FavoriteFailed, err
		}
		return FavoriteDryRun, nil
	}

	if res == platform.FavoriteAlreadyDone {
		return FavoriteAlreadyDone, nil
	}
	return FavoriteDone, nil
}
