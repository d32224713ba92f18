package util

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testHTTPClient() *http.Client {
	return NewHTTPClient(HTTPClientConfig{
		RetryMax:     3,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
		Timeout:      5 * time.Second,
	}, slog.Default())
}

// flaky answers with the given status codes in order, then 200.
func flaky(statuses ...int) (*httptest.Server, *atomic.Int32) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	return srv, &hits
}

func TestRobustClientRetriesGet(t *testing.T) {
	assert := assert.New(t)

	srv, hits := flaky(http.StatusServiceUnavailable, http.StatusBadGateway)
	defer srv.Close()

	resp, err := testHTTPClient().Get(srv.URL)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(int32(3), hits.Load())
}

func TestRobustClientDoesNotRetryFailedPost(t *testing.T) {
	assert := assert.New(t)

	srv, hits := flaky(http.StatusInternalServerError)
	defer srv.Close()

	resp, err := testHTTPClient().Post(srv.URL, "application/json", strings.NewReader(`{"text":"きゅぴこん♡"}`))
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(int32(1), hits.Load())
}

func TestRobustClientRetriesThrottledPost(t *testing.T) {
	assert := assert.New(t)

	srv, hits := flaky(http.StatusTooManyRequests)
	defer srv.Close()

	resp, err := testHTTPClient().Post(srv.URL, "application/json", strings.NewReader(`{"text":"きゅぴこん♡"}`))
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(int32(2), hits.Load())
}

func TestRobustClientGivesUpWithLastResponse(t *testing.T) {
	assert := assert.New(t)

	srv, hits := flaky(503, 503, 503, 503, 503)
	defer srv.Close()

	resp, err := testHTTPClient().Get(srv.URL)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(int32(4), hits.Load())
}

func TestRobustClientDoesNotRetryPostAfterSend(t *testing.T) {
	assert := assert.New(t)

	// the request is read, then the connection dropped without an answer
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	_, err := testHTTPClient().Post(srv.URL, "application/json", strings.NewReader(`{"text":"きゅぴこん♡"}`))
	assert.Error(err)
	assert.Equal(int32(1), hits.Load())
}

func TestRetryPolicyPost(t *testing.T) {
	assert := assert.New(t)

	post := context.WithValue(context.Background(), requestMethodKey{}, http.MethodPost)
	get := context.WithValue(context.Background(), requestMethodKey{}, http.MethodGet)
	refused := &url.Error{Op: "Post", URL: "https://api.example.com/v1/posts", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}}
	reset := &url.Error{Op: "Post", URL: "https://api.example.com/v1/posts", Err: &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}}

	retry, _ := retryPolicy(post, nil, refused)
	assert.True(retry)
	retry, _ = retryPolicy(post, nil, reset)
	assert.False(retry)
	retry, _ = retryPolicy(get, nil, reset)
	assert.True(retry)

	retry, _ = retryPolicy(post, &http.Response{StatusCode: http.StatusBadGateway}, nil)
	assert.False(retry)
	retry, _ = retryPolicy(post, &http.Response{StatusCode: http.StatusTooManyRequests}, nil)
	assert.True(retry)
	retry, _ = retryPolicy(get, &http.Response{StatusCode: http.StatusBadGateway}, nil)
	assert.True(retry)
}
