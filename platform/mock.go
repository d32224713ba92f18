package platform

import (
	"context"
	"fmt"
	"sync"
)

// One recorded call against a MockClient.
type Call struct {
	Method string
	// handle, content id, url or query, depending on the method
	Arg   string
	Input PostInput
}

// In-memory Client for tests. Records every call in order, and serves canned messages,
// timelines and media. Errors can be injected per method name.
type MockClient struct {
	mu sync.Mutex

	Calls      []Call
	Messages   map[string]*Message
	Recent     []string
	Search     []Message
	MediaFiles map[string][]byte
	Config     Configuration
	// method name -> error returned by that method
	Errors map[string]error
	// content ids which the platform reports as already favorited
	Favorited map[string]bool

	nextID int
}

var _ Client = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{
		Messages:   make(map[string]*Message),
		MediaFiles: make(map[string][]byte),
		Errors:     make(map[string]error),
		Favorited:  make(map[string]bool),
		Config:     Configuration{PhotoSizeLimit: 3 * 1024 * 1024},
	}
}

func (c *MockClient) record(method, arg string, in PostInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, Call{Method: method, Arg: arg, Input: in})
	return c.Errors[method]
}

// Returns recorded calls for the given method, in order.
func (c *MockClient) CallsFor(method string) []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []Call{}
	for _, call := range c.Calls {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

// Returns the method names of all recorded mutating calls, in order.
func (c *MockClient) Mutations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []string{}
	for _, call := range c.Calls {
		switch call.Method {
		case "PostReply", "Follow", "Unfollow", "Favorite", "DeleteContent":
			out = append(out, call.Method)
		}
	}
	return out
}

func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = nil
}

func (c *MockClient) PostReply(ctx context.Context, in PostInput) (string, error) {
	if err := c.record("PostReply", in.ToHandle, in); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.Recent = append([]string{in.FullText()}, c.Recent...)
	return fmt.Sprintf("mock-%d", c.nextID), nil
}

func (c *MockClient) Follow(ctx context.Context, handle string) error {
	return c.record("Follow", handle, PostInput{})
}

func (c *MockClient) Unfollow(ctx context.Context, handle string) error {
	return c.record("Unfollow", handle, PostInput{})
}

func (c *MockClient) Favorite(ctx context.Context, contentID string) (FavoriteResult, error) {
	if err := c.record("Favorite", contentID, PostInput{}); err != nil {
		return FavoriteOK, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Favorited[contentID] {
		return FavoriteAlreadyDone, nil
	}
	c.Favorited[contentID] = true
	return FavoriteOK, nil
}

func (c *MockClient) DeleteContent(ctx context.Context, contentID string) error {
	if err := c.record("DeleteContent", contentID, PostInput{}); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Messages, contentID)
	return nil
}

func (c *MockClient) GetMessage(ctx context.Context, contentID string) (*Message, error) {
	if err := c.record("GetMessage", contentID, PostInput{}); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, ok := c.Messages[contentID]
	if !ok {
		return nil, fmt.Errorf("fetching %s: %w", contentID, ErrNotFound)
	}
	return msg, nil
}

func (c *MockClient) FetchRecentOwnPosts(ctx context.Context, n int) ([]string, error) {
	if err := c.record("FetchRecentOwnPosts", fmt.Sprint(n), PostInput{}); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > len(c.Recent) {
		n = len(c.Recent)
	}
	out := make([]string, n)
	copy(out, c.Recent[:n])
	return out, nil
}

func (c *MockClient) SearchContent(ctx context.Context, query string, limit int) ([]Message, error) {
	if err := c.record("SearchContent", query, PostInput{}); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit > 0 && limit < len(c.Search) {
		return c.Search[:limit], nil
	}
	return c.Search, nil
}

func (c *MockClient) FetchMedia(ctx context.Context, url string) ([]byte, error) {
	if err := c.record("FetchMedia", url, PostInput{}); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.MediaFiles[url]
	if !ok {
		return nil, fmt.Errorf("fetching media %s: %w", url, ErrNotFound)
	}
	return b, nil
}

func (c *MockClient) Configuration(ctx context.Context) (*Configuration, error) {
	if err := c.record("Configuration", "", PostInput{}); err != nil {
		return nil, err
	}
	cfg := c.Config
	return &cfg, nil
}
