// Package auth holds the bot's credential record and the one-time interactive OAuth2
// authorization flow.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"
)

var ErrNotAuthorized = errors.New("credentials have no access token; run the authorize command first")

// Credential record persisted between runs.
type Credentials struct {
	AppKey       string    `yaml:"app_key"`
	AppSecret    string    `yaml:"app_secret"`
	AccessToken  string    `yaml:"access_token,omitempty"`
	RefreshToken string    `yaml:"refresh_token,omitempty"`
	TokenExpiry  time.Time `yaml:"token_expiry,omitempty"`
	// handle of the authorized (bot) account
	Handle string `yaml:"handle,omitempty"`
}

func LoadCredentials(path string) (*Credentials, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	var creds Credentials
	if err := yaml.Unmarshal(b, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials file %s: %w", path, err)
	}
	if creds.AppKey == "" || creds.AppSecret == "" {
		return nil, fmt.Errorf("credentials file %s is missing app_key or app_secret", path)
	}
	return &creds, nil
}

// Writes the record atomically (temp file then rename), readable only by the owner.
func (c *Credentials) Save(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Checks the record is usable for API calls.
func (c *Credentials) Validate() error {
	if c.AccessToken == "" {
		return ErrNotAuthorized
	}
	if c.Handle == "" {
		return fmt.Errorf("credentials have no handle: %w", ErrNotAuthorized)
	}
	return nil
}

func (c *Credentials) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.TokenExpiry,
		TokenType:    "Bearer",
	}
}

func (c *Credentials) SetToken(tok *oauth2.Token) {
	c.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		c.RefreshToken = tok.RefreshToken
	}
	c.TokenExpiry = tok.Expiry
}
