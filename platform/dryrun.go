package platform

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Wraps a Client, passing read-only calls through and logging mutating calls instead of
// executing them.
type DryRunClient struct {
	Inner  Client
	Logger *slog.Logger
}

var _ Client = (*DryRunClient)(nil)

func NewDryRunClient(inner Client, logger *slog.Logger) *DryRunClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunClient{
		Inner:  inner,
		Logger: logger.With("dryrun", true),
	}
}

func (c *DryRunClient) PostReply(ctx context.Context, in PostInput) (string, error) {
	id := "dryrun-" + uuid.NewString()
	c.Logger.Info("posting on debug", "text", in.FullText(), "in_reply_to", in.InReplyToID, "media", in.MediaPath, "post_id", id)
	return id, nil
}

func (c *DryRunClient) Follow(ctx context.Context, handle string) error {
	c.Logger.Info("following on debug", "handle", handle)
	return nil
}

func (c *DryRunClient) Unfollow(ctx context.Context, handle string) error {
	c.Logger.Info("unfollowing on debug", "handle", handle)
	return nil
}

func (c *DryRunClient) Favorite(ctx context.Context, contentID string) (FavoriteResult, error) {
	c.Logger.Info("favoriting on debug", "content_id", contentID)
	return FavoriteOK, nil
}

func (c *DryRunClient) DeleteContent(ctx context.Context, contentID string) error {
	c.Logger.Info("deleting on debug", "content_id", contentID)
	return nil
}

func (c *DryRunClient) GetMessage(ctx context.Context, contentID string) (*Message, error) {
	return c.Inner.GetMessage(ctx, contentID)
}

func (c *DryRunClient) FetchRecentOwnPosts(ctx context.Context, n int) ([]string, error) {
	return c.Inner.FetchRecentOwnPosts(ctx, n)
}

func (c *DryRunClient) SearchContent(ctx context.Context, query string, limit int) ([]Message, error) {
	return c.Inner.SearchContent(ctx, query, limit)
}

func (c *DryRunClient) FetchMedia(ctx context.Context, url string) ([]byte, error) {
	return c.Inner.FetchMedia(ctx, url)
}

func (c *DryRunClient) Configuration(ctx context.Context) (*Configuration, error) {
	return c.Inner.Configuration(ctx)
}
