// Contract between the bot and the social platform it runs on.
//
// Everything the bot does to the outside world goes through a Client. The REST
// implementation lives in platform/rest; DryRunClient and MockClient wrap or replace it for
// debug runs and tests.
package platform

import (
	"context"
)

type Client interface {
	PostReply(ctx context.Context, in PostInput) (string, error)
	Follow(ctx context.Context, handle string) error
	Unfollow(ctx context.Context, handle string) error
	Favorite(ctx context.Context, contentID string) (FavoriteResult, error)
	DeleteContent(ctx context.Context, contentID string) error

	// returns ErrNotFound (possibly wrapped) if the content does not exist
	GetMessage(ctx context.Context, contentID string) (*Message, error)
	// text of the n most recent posts by the authenticated account, newest first
	FetchRecentOwnPosts(ctx context.Context, n int) ([]string, error)
	SearchContent(ctx context.Context, query string, limit int) ([]Message, error)
	FetchMedia(ctx context.Context, url string) ([]byte, error)
	Configuration(ctx context.Context) (*Configuration, error)
}
