package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bluesky-social/kyupikon/bot/cachestore"
	"github.com/bluesky-social/kyupikon/bot/consumer"
	"github.com/bluesky-social/kyupikon/bot/engine"
	"github.com/bluesky-social/kyupikon/bot/policystore"
	"github.com/bluesky-social/kyupikon/bot/queuestore"
	"github.com/bluesky-social/kyupikon/bot/setstore"

	"github.com/stretchr/testify/assert"
)

func testServer(t *testing.T) *Server {
	eng, _ := engine.EngineTestFixture()
	stores := &Stores{
		Policies: eng.Policies,
		Sets:     eng.Sets,
		Queues:   queuestore.NewMemQueueStore(),
		Cache:    cachestore.NewMemCacheStore(10, time.Minute),
	}
	srv, err := NewServer(eng, &consumer.Consumer{Logger: slog.Default()}, stores, Config{
		Logger:        slog.Default(),
		AdminPassword: "hunter2",
	})
	if err != nil {
		t.Fatal(err)
	}
	return srv
}

func adminRequest(srv *Server, method, path, password string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if password != "" {
		req.SetBasicAuth("admin", password)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServerRequiresPassword(t *testing.T) {
	assert := assert.New(t)
	eng, _ := engine.EngineTestFixture()
	_, err := NewServer(eng, nil, &Stores{}, Config{})
	assert.Error(err)
}

func TestHealthCheck(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := adminRequest(srv, http.MethodGet, "/_health", "")
	assert.Equal(http.StatusOK, rec.Code)
	var out GenericStatus
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal("ok", out.Status)
	assert.Equal("kyupikon", out.Daemon)
}

func TestAdminAuth(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	assert.Equal(http.StatusUnauthorized, adminRequest(srv, http.MethodPost, "/admin/reset-counters", "").Code)
	assert.Equal(http.StatusUnauthorized, adminRequest(srv, http.MethodPost, "/admin/reset-counters", "wrong").Code)
	assert.Equal(http.StatusOK, adminRequest(srv, http.MethodPost, "/admin/reset-counters", "hunter2").Code)
}

func TestAdminResetCounters(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	srv := testServer(t)
	policies := srv.stores.Policies

	for _, u := range []string{"uid-alice", "uid-bob"} {
		_, err := policies.Increment(ctx, u, policystore.FieldReplyCount, 15)
		assert.NoError(err)
	}
	assert.NoError(policystore.SetFlag(ctx, policies, "uid-alice", policystore.FieldDenyReply, true))

	rec := adminRequest(srv, http.MethodPost, "/admin/reset-counters", "hunter2")
	assert.Equal(http.StatusOK, rec.Code)
	var out resetOutput
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(2, out.Reset)

	p, err := policystore.Load(ctx, policies, "uid-alice")
	assert.NoError(err)
	assert.Equal(int64(0), p.ReplyCount)
	// other fields are untouched
	assert.True(p.DenyReply)
}

func TestAdminQueues(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	srv := testServer(t)
	assert.NoError(srv.stores.Queues.Push(ctx, queuestore.QueuePost, "a", "b"))

	rec := adminRequest(srv, http.MethodGet, "/admin/queues/post", "hunter2")
	assert.Equal(http.StatusOK, rec.Code)
	var out queueOutput
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal([]string{"a", "b"}, out.Entries)

	assert.Equal(http.StatusBadRequest, adminRequest(srv, http.MethodGet, "/admin/queues/other", "hunter2").Code)

	assert.Equal(http.StatusNoContent, adminRequest(srv, http.MethodDelete, "/admin/queues/post", "hunter2").Code)
	n, err := srv.stores.Queues.Len(ctx, queuestore.QueuePost)
	assert.NoError(err)
	assert.Equal(0, n)
}

func TestAdminPolicyGet(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	srv := testServer(t)
	assert.NoError(policystore.SetFlag(ctx, srv.stores.Policies, "uid-alice", policystore.FieldAllowAllReplies, true))

	rec := adminRequest(srv, http.MethodGet, "/admin/policy/uid-alice", "hunter2")
	assert.Equal(http.StatusOK, rec.Code)
	var p policystore.UserPolicy
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &p))
	assert.True(p.AllowAllReplies)
	assert.False(p.DenyFavorite)
}

func TestParseField(t *testing.T) {
	assert := assert.New(t)

	f, err := parseField("denyReply")
	assert.NoError(err)
	assert.Equal(policystore.FieldDenyReply, f)
	_, err = parseField("bogus")
	assert.Error(err)
}

func TestOpenStoresSqlite(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	stores, err := OpenStores(StoreConfig{DatabaseURL: "sqlite://" + t.TempDir() + "/bot.db", MaxConnections: 1})
	if !assert.NoError(err) {
		return
	}
	added, err := stores.Sets.Add(ctx, setstore.SetFavorited, "c1")
	assert.NoError(err)
	assert.True(added)
	assert.NoError(stores.Cache.Set(ctx, "recent-posts", "self", "x"))
}
