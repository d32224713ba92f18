package engine

import (
	"log/slog"
	"time"

	"github.com/bluesky-social/kyupikon/bot/cachestore"
	"github.com/bluesky-social/kyupikon/bot/keyword"
	"github.com/bluesky-social/kyupikon/bot/policystore"
	"github.com/bluesky-social/kyupikon/bot/queuestore"
	"github.com/bluesky-social/kyupikon/bot/rotator"
	"github.com/bluesky-social/kyupikon/bot/setstore"
	"github.com/bluesky-social/kyupikon/platform"
)

const TestSelfHandle = "kyupikon_bot"

// Returns an engine wired to in-memory stores and a recording mock platform client. The caller
// sets Rules.
func EngineTestFixture() (*Engine, *platform.MockClient) {
	client := platform.NewMockClient()
	cache := cachestore.NewMemCacheStore(10, time.Minute)
	rot := rotator.NewRotator(queuestore.NewMemQueueStore(), cache, client.FetchRecentOwnPosts, slog.Default(), rotator.Config{})
	eng := &Engine{
		Logger:   slog.Default(),
		Policies: policystore.NewMemPolicyStore(),
		Sets:     setstore.NewMemSetStore(),
		Rotator:  rot,
		Client:   client,
		Keywords: keyword.NewMatcher([]string{"きゅぴこん", "ななみちゃん"}),
		Config: Config{
			SelfHandle:   TestSelfHandle,
			ReplyCeiling: DefaultReplyCeiling,
		},
	}
	return eng, client
}

// Builds a message from a user to the bot, for tests.
func TestMessage(id, handle, text string) *platform.Message {
	return &platform.Message{
		ID:        id,
		Sender:    platform.Account{ID: "uid-" + handle, Handle: handle},
		Relation:  platform.RelationFollower,
		Text:      text,
		CreatedAt: time.Now(),
	}
}
