package auth

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

func OAuthConfig(creds *Credentials, apiHost string) *oauth2.Config {
	host := strings.TrimSuffix(apiHost, "/")
	return &oauth2.Config{
		ClientID:     creds.AppKey,
		ClientSecret: creds.AppSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  host + "/oauth/authorize",
			TokenURL: host + "/oauth/token",
		},
		// out-of-band: the user copies the code shown by the platform
		RedirectURL: "urn:ietf:wg:oauth:2.0:oob",
		Scopes:      []string{"read", "write", "follow"},
	}
}

// Authorize runs the one-time interactive flow: prints an authorization URL to out, reads the
// code the user pastes into in, and exchanges it for a token. The returned credentials carry
// the token; the caller persists them. lookupHandle resolves the authorized account's handle
// with the new token.
func Authorize(ctx context.Context, cfg *oauth2.Config, creds *Credentials, in io.Reader, out io.Writer, lookupHandle func(ctx context.Context, client *http.Client) (string, error)) (*Credentials, error) {
	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()
	authURL := cfg.AuthCodeURL(hex.EncodeToString(stateBytes), oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	fmt.Fprintf(out, "Open this URL in a browser and authorize the application:\n\n  %s\n\nThen paste the code here: ", authURL)
	code, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("no authorization code entered: %w", ErrNotAuthorized)
	}

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	updated := *creds
	updated.SetToken(tok)
	if lookupHandle != nil {
		handle, err := lookupHandle(ctx, cfg.Client(ctx, tok))
		if err != nil {
			return nil, fmt.Errorf("looking up authorized account: %w", err)
		}
		updated.Handle = handle
	}
	return &updated, nil
}

// Wraps a token source, writing the credential file whenever a refresh yields a new token.
type persistingTokenSource struct {
	lk     sync.Mutex
	inner  oauth2.TokenSource
	creds  *Credentials
	path   string
	logger *slog.Logger
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.inner.Token()
	if err != nil {
		return nil, err
	}
	s.lk.Lock()
	defer s.lk.Unlock()
	if tok.AccessToken != s.creds.AccessToken {
		s.creds.SetToken(tok)
		if err := s.creds.Save(s.path); err != nil {
			// token is still usable for this process
			s.logger.Warn("failed to persist refreshed token", "path", s.path, "err", err)
		} else {
			s.logger.Info("persisted refreshed access token", "expiry", tok.Expiry)
		}
	}
	return tok, nil
}

// Returns a token source which refreshes the stored token when it expires, writing the
// credential file whenever a refresh yields a new token. base is the client used for token
// calls.
func NewTokenSource(ctx context.Context, cfg *oauth2.Config, creds *Credentials, path string, base *http.Client, logger *slog.Logger) oauth2.TokenSource {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	ts := &persistingTokenSource{
		inner:  cfg.TokenSource(ctx, creds.Token()),
		creds:  creds,
		path:   path,
		logger: logger.With("system", "auth"),
	}
	return oauth2.ReuseTokenSource(creds.Token(), ts)
}

// Returns an HTTP client which authorizes requests with the given token source. base is the
// transport-level client; nil uses the default.
func NewHTTPClient(ctx context.Context, ts oauth2.TokenSource, base *http.Client) *http.Client {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	return oauth2.NewClient(ctx, ts)
}
