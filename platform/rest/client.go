// Package rest implements platform.Client against the platform's JSON REST gateway.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bluesky-social/kyupikon/platform"
	"github.com/bluesky-social/kyupikon/util"

	"github.com/carlmjohnson/versioninfo"
	"github.com/google/go-querystring/query"
	"github.com/rivo/uniseg"
	"golang.org/x/time/rate"
)

// Longest status body the platform accepts, counted in grapheme clusters.
const MaxPostGraphemes = 140

type Client struct {
	// Client is an HTTP client to use. Authorization is expected to be handled by the client
	// transport (eg, an oauth2 client). If not set, defaults to util.RobustHTTPClient().
	Client *http.Client
	// Static bearer token; only used when set. Prefer an oauth2 transport.
	AccessToken string
	Host        string
	UserAgent   *string
	Headers     map[string]string
	// Optional client-side rate limit. Requests wait on the limiter before being sent.
	Limiter *rate.Limiter
	// Handle of the authenticated account, used to compute message relations.
	SelfHandle string
	// Used for media on other hosts; see PublicMediaClient. Defaults to Client.
	MediaClient *http.Client
}

var _ platform.Client = (*Client)(nil)

func (c *Client) getClient() *http.Client {
	if c.Client == nil {
		return util.RobustHTTPClient()
	}
	return c.Client
}

// Error body returned by the gateway on non-2xx responses.
type APIError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (ae *APIError) Error() string {
	return fmt.Sprintf("%s: %s", ae.Code, ae.Message)
}

func errorFromHTTPResponse(resp *http.Response, err error) error {
	r := &platform.Error{
		StatusCode: resp.StatusCode,
		Wrapped:    err,
	}
	if ae, ok := err.(*APIError); ok {
		r.Code = ae.Code
	}
	if resp.Header.Get("ratelimit-limit") != "" {
		r.Ratelimit = &platform.RatelimitInfo{}
		if n, err := strconv.ParseInt(resp.Header.Get("ratelimit-reset"), 10, 64); err == nil {
			r.Ratelimit.Reset = time.Unix(n, 0)
		}
		if n, err := strconv.ParseInt(resp.Header.Get("ratelimit-limit"), 10, 64); err == nil {
			r.Ratelimit.Limit = int(n)
		}
		if n, err := strconv.ParseInt(resp.Header.Get("ratelimit-remaining"), 10, 64); err == nil {
			r.Ratelimit.Remaining = int(n)
		}
	}
	return r
}

// Do sends a single request. params is encoded with go-querystring (a struct with `url` tags),
// bodyobj is JSON-encoded unless it is an io.Reader, and out is JSON-decoded unless it is a
// *bytes.Buffer.
func (c *Client) Do(ctx context.Context, method, path string, params any, contentType string, bodyobj any, out any) error {
	var body io.Reader
	if bodyobj != nil {
		if rr, ok := bodyobj.(io.Reader); ok {
			body = rr
		} else {
			b, err := json.Marshal(bodyobj)
			if err != nil {
				return err
			}
			body = bytes.NewReader(b)
			if contentType == "" {
				contentType = "application/json"
			}
		}
	}

	var paramStr string
	if params != nil {
		v, err := query.Values(params)
		if err != nil {
			return fmt.Errorf("encoding query params: %w", err)
		}
		if len(v) > 0 {
			paramStr = "?" + v.Encode()
		}
	}

	uri := strings.TrimSuffix(c.Host, "/") + path + paramStr

	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return err
	}

	if bodyobj != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.UserAgent != nil {
		req.Header.Set("User-Agent", *c.UserAgent)
	} else {
		req.Header.Set("User-Agent", "kyupikon/"+versioninfo.Short())
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	if c.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	resp, err := c.getClient().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ae APIError
		if err := json.NewDecoder(resp.Body).Decode(&ae); err != nil {
			return errorFromHTTPResponse(resp, fmt.Errorf("failed to decode error message: %w", err))
		}
		return errorFromHTTPResponse(resp, &ae)
	}

	if out != nil {
		if buf, ok := out.(*bytes.Buffer); ok {
			if _, err := io.Copy(buf, resp.Body); err != nil {
				return fmt.Errorf("reading response body: %w", err)
			}
		} else {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
		}
	}
	return nil
}

type createPostInput struct {
	Text              string   `json:"text"`
	InReplyToStatusID string   `json:"in_reply_to_status_id,omitempty"`
	MediaIDs          []string `json:"media_ids,omitempty"`
}

type idOutput struct {
	ID string `json:"id"`
}

// Truncates text to at most max grapheme clusters. Returns the input unchanged if it fits.
func TruncateGraphemes(text string, max int) string {
	if uniseg.GraphemeClusterCount(text) <= max {
		return text
	}
	var sb strings.Builder
	g := uniseg.NewGraphemes(text)
	for i := 0; i < max && g.Next(); i++ {
		sb.WriteString(g.Str())
	}
	return sb.String()
}

func (c *Client) PostReply(ctx context.Context, in platform.PostInput) (string, error) {
	body := createPostInput{
		Text:              TruncateGraphemes(in.FullText(), MaxPostGraphemes),
		InReplyToStatusID: in.InReplyToID,
	}
	if in.MediaPath != "" {
		mediaID, err := c.uploadMedia(ctx, in.MediaPath)
		if err != nil {
			return "", err
		}
		body.MediaIDs = []string{mediaID}
	}

	var out idOutput
	if err := c.Do(ctx, http.MethodPost, "/v1/posts", nil, "", body, &out); err != nil {
		return "", fmt.Errorf("creating post: %w", err)
	}
	return out.ID, nil
}

func (c *Client) uploadMedia(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening media file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("reading media file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var out idOutput
	if err := c.Do(ctx, http.MethodPost, "/v1/media", nil, mw.FormDataContentType(), &buf, &out); err != nil {
		return "", fmt.Errorf("uploading media: %w", err)
	}
	return out.ID, nil
}

func (c *Client) Follow(ctx context.Context, handle string) error {
	return c.Do(ctx, http.MethodPut, "/v1/following/"+handle, nil, "", nil, nil)
}

func (c *Client) Unfollow(ctx context.Context, handle string) error {
	return c.Do(ctx, http.MethodDelete, "/v1/following/"+handle, nil, "", nil, nil)
}

func (c *Client) Favorite(ctx context.Context, contentID string) (platform.FavoriteResult, error) {
	err := c.Do(ctx, http.MethodPut, "/v1/likes/"+contentID, nil, "", nil, nil)
	if err != nil {
		if platform.IsAlreadyDone(err) {
			return platform.FavoriteAlreadyDone, nil
		}
		return platform.FavoriteOK, err
	}
	return platform.FavoriteOK, nil
}

func (c *Client) DeleteContent(ctx context.Context, contentID string) error {
	return c.Do(ctx, http.MethodDelete, "/v1/posts/"+contentID, nil, "", nil, nil)
}

func (c *Client) GetMessage(ctx context.Context, contentID string) (*platform.Message, error) {
	var out platform.StatusView
	if err := c.Do(ctx, http.MethodGet, "/v1/posts/"+contentID, nil, "", nil, &out); err != nil {
		return nil, err
	}
	msg := out.Message(c.SelfHandle)
	return &msg, nil
}

type limitParams struct {
	Limit int `url:"limit,omitempty"`
}

type searchParams struct {
	Query string `url:"q"`
	Limit int    `url:"limit,omitempty"`
}

type statusListOutput struct {
	Statuses []platform.StatusView `json:"statuses"`
}

func (c *Client) FetchRecentOwnPosts(ctx context.Context, n int) ([]string, error) {
	var out statusListOutput
	if err := c.Do(ctx, http.MethodGet, "/v1/accounts/self/posts", limitParams{Limit: n}, "", nil, &out); err != nil {
		return nil, fmt.Errorf("fetching own timeline: %w", err)
	}
	texts := make([]string, 0, len(out.Statuses))
	for _, s := range out.Statuses {
		texts = append(texts, s.Text)
	}
	return texts, nil
}

func (c *Client) SearchContent(ctx context.Context, q string, limit int) ([]platform.Message, error) {
	var out statusListOutput
	if err := c.Do(ctx, http.MethodGet, "/v1/search", searchParams{Query: q, Limit: limit}, "", nil, &out); err != nil {
		return nil, fmt.Errorf("searching content: %w", err)
	}
	msgs := make([]platform.Message, 0, len(out.Statuses))
	for i := range out.Statuses {
		msgs = append(msgs, out.Statuses[i].Message(c.SelfHandle))
	}
	return msgs, nil
}

// Largest media file FetchMedia will read.
const MaxMediaBytes = 32 << 20

// Downloads a media file. Absolute URLs are fetched as-is (media is usually hosted on a CDN),
// through MediaClient unless they point at Host; relative ones against Host.
func (c *Client) FetchMedia(ctx context.Context, url string) ([]byte, error) {
	client := c.getClient()
	host := strings.TrimSuffix(c.Host, "/")
	switch {
	case !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://"):
		url = host + url
	case c.MediaClient != nil && !strings.HasPrefix(url, host+"/"):
		client = c.MediaClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "kyupikon/"+versioninfo.Short())
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errorFromHTTPResponse(resp, fmt.Errorf("fetching media %s", url))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxMediaBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxMediaBytes {
		return nil, fmt.Errorf("media file larger than %d bytes", MaxMediaBytes)
	}
	return body, nil
}

// Returns the account the client is authorized as.
func (c *Client) SelfAccount(ctx context.Context) (*platform.Account, error) {
	var out platform.AccountView
	if err := c.Do(ctx, http.MethodGet, "/v1/accounts/self", nil, "", nil, &out); err != nil {
		return nil, fmt.Errorf("fetching own account: %w", err)
	}
	acct := out.Account()
	return &acct, nil
}

func (c *Client) Configuration(ctx context.Context) (*platform.Configuration, error) {
	var out platform.Configuration
	if err := c.Do(ctx, http.MethodGet, "/v1/configuration", nil, "", nil, &out); err != nil {
		return nil, fmt.Errorf("fetching configuration: %w", err)
	}
	return &out, nil
}
