package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bluesky-social/kyupikon/platform"

	"github.com/stretchr/testify/assert"
)

func testClient(srv *httptest.Server) *Client {
	return &Client{
		Client:      srv.Client(),
		Host:        srv.URL,
		AccessToken: "secret",
		SelfHandle:  "kyupikon_bot",
	}
}

func TestPostReply(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var got createPostInput
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodPost, r.Method)
		assert.Equal("/v1/posts", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"123"}`))
	}))
	defer srv.Close()

	c := testClient(srv)
	id, err := c.PostReply(ctx, platform.PostInput{Text: "よろしくね♥", ToHandle: "alice", InReplyToID: "99"})
	assert.NoError(err)
	assert.Equal("123", id)
	assert.Equal("Bearer secret", auth)
	assert.Equal("@alice よろしくね♥", got.Text)
	assert.Equal("99", got.InReplyToStatusID)
	assert.Empty(got.MediaIDs)
}

func TestPostReplyWithMedia(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	dir := t.TempDir()
	p := filepath.Join(dir, "img_signed.png")
	assert.NoError(os.WriteFile(p, []byte("fake png"), 0o644))

	var mediaIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/media":
			f, hdr, err := r.FormFile("media")
			assert.NoError(err)
			defer f.Close()
			assert.Equal("img_signed.png", hdr.Filename)
			w.Write([]byte(`{"id":"m1"}`))
		case "/v1/posts":
			var in createPostInput
			assert.NoError(json.NewDecoder(r.Body).Decode(&in))
			mediaIDs = in.MediaIDs
			w.Write([]byte(`{"id":"p1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	id, err := testClient(srv).PostReply(ctx, platform.PostInput{Text: "きゅぴこん", MediaPath: p})
	assert.NoError(err)
	assert.Equal("p1", id)
	assert.Equal([]string{"m1"}, mediaIDs)
}

func TestFavoriteAlreadyDone(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	liked := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodPut, r.Method)
		if liked[r.URL.Path] {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"already_liked","message":"you have already liked this"}`))
			return
		}
		liked[r.URL.Path] = true
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(srv)
	res, err := c.Favorite(ctx, "42")
	assert.NoError(err)
	assert.Equal(platform.FavoriteOK, res)

	res, err = c.Favorite(ctx, "42")
	assert.NoError(err)
	assert.Equal(platform.FavoriteAlreadyDone, res)
}

func TestErrorMapping(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/posts/missing":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not_found","message":"no such post"}`))
		case "/v1/posts/busy":
			w.Header().Set("ratelimit-limit", "300")
			w.Header().Set("ratelimit-remaining", "0")
			w.Header().Set("ratelimit-reset", "1700000000")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"slow down"}`))
		}
	}))
	defer srv.Close()

	c := testClient(srv)
	_, err := c.GetMessage(ctx, "missing")
	assert.Error(err)
	assert.True(platform.IsNotFound(err))
	assert.False(platform.IsTransient(err))

	err = c.DeleteContent(ctx, "busy")
	assert.Error(err)
	assert.True(platform.IsTransient(err))
	var perr *platform.Error
	assert.ErrorAs(err, &perr)
	assert.True(perr.IsThrottled())
	assert.Equal("rate_limited", perr.Code)
	if assert.NotNil(perr.Ratelimit) {
		assert.Equal(300, perr.Ratelimit.Limit)
		assert.Equal(0, perr.Ratelimit.Remaining)
	}
}

func TestGetMessageNormalizes(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "7",
			"text": "@alice きゅぴこん♪",
			"user": {"id": "1", "screen_name": "kyupikon_bot"},
			"in_reply_to_status_id": "6",
			"in_reply_to_user_id": "2",
			"created_at": "Wed Oct 10 20:19:24 +0000 2018"
		}`))
	}))
	defer srv.Close()

	msg, err := testClient(srv).GetMessage(ctx, "7")
	assert.NoError(err)
	assert.Equal(platform.RelationSelf, msg.Relation)
	assert.Equal("2", msg.InReplyToUserID)
	assert.Equal(2018, msg.CreatedAt.Year())
}

func TestSearchParams(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("きゅぴこん", r.URL.Query().Get("q"))
		assert.Equal("20", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"statuses":[{"id":"1","text":"きゅぴこん","user":{"id":"5","screen_name":"bob","follows_you":true}}]}`))
	}))
	defer srv.Close()

	msgs, err := testClient(srv).SearchContent(ctx, "きゅぴこん", 20)
	assert.NoError(err)
	assert.Len(msgs, 1)
	assert.Equal(platform.RelationFollower, msgs[0].Relation)
	assert.Equal("bob", msgs[0].Sender.Handle)
}

func TestTruncateGraphemes(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("abc", TruncateGraphemes("abc", 5))
	assert.Equal("ab", TruncateGraphemes("abc", 2))
	// flag emoji is a single grapheme made of two runes
	assert.Equal("🇯🇵", TruncateGraphemes("🇯🇵🇯🇵", 1))
}
