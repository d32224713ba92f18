package util

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

type HTTPClientConfig struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// Bounds every request, retries included.
	Timeout time.Duration
}

var DefaultHTTPClientConfig = HTTPClientConfig{
	RetryMax:     3,
	RetryWaitMin: 1 * time.Second,
	RetryWaitMax: 10 * time.Second,
	Timeout:      20 * time.Second,
}

// retryLogger adapts slog to retryablehttp. Failed attempts are expected while retrying, so
// ERROR is logged as WARN, and DEBUG (where retries are announced) as INFO.
type retryLogger struct {
	*slog.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...any) {
	l.Logger.Warn(msg, keysAndValues...)
}

func (l retryLogger) Debug(msg string, keysAndValues ...any) {
	l.Logger.Info(msg, keysAndValues...)
}

type requestMethodKey struct{}

// methodTagger records the request method in the context, since retry policies only see the
// response (nil after a transport error) and the error.
type methodTagger struct {
	next http.RoundTripper
}

func (t methodTagger) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := context.WithValue(req.Context(), requestMethodKey{}, req.Method)
	return t.next.RoundTrip(req.WithContext(ctx))
}

// Reports whether the request failed before a connection was made, so nothing was sent.
func dialFailed(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// A second post is visible to users, so POST requests are only retried when the platform
// certainly did not process them: a 429, or a failure to connect at all. Timeouts and resets
// after the request was written are not retried.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if method, _ := ctx.Value(requestMethodKey{}).(string); method == http.MethodPost {
		if err != nil && !dialFailed(err) {
			return false, nil
		}
		if err == nil && resp != nil && resp.StatusCode != http.StatusTooManyRequests {
			return false, nil
		}
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// NewHTTPClient returns a stdlib *http.Client backed by retryablehttp. Connection errors, 429
// (respecting Retry-After) and 5xx other than 501 are retried, subject to retryPolicy.
func NewHTTPClient(config HTTPClientConfig, logger *slog.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = config.RetryMax
	rc.RetryWaitMin = config.RetryWaitMin
	rc.RetryWaitMax = config.RetryWaitMax
	rc.CheckRetry = retryPolicy
	rc.Logger = retryablehttp.LeveledLogger(retryLogger{logger})
	// hand the last response back to the caller instead of a "giving up" error, so status
	// codes still map to platform errors
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := rc.StandardClient()
	client.Transport = methodTagger{next: client.Transport}
	client.Timeout = config.Timeout
	return client
}

func RobustHTTPClient() *http.Client {
	return RobustHTTPClientWithLogger(slog.Default().With("system", "http"))
}

func RobustHTTPClientWithLogger(logger *slog.Logger) *http.Client {
	return NewHTTPClient(DefaultHTTPClientConfig, logger)
}
