// Package oauth implements GitHub sign-in with the authorization code flow.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	// DefaultAPIBaseURL is the GitHub REST API root.
	DefaultAPIBaseURL = "https://api.github.com"
	apiVersion        = "2022-11-28"
)

var (
	// ErrNoEmail is returned when the GitHub account exposes no usable email.
	ErrNoEmail = errors.New("github account has no verified email")
	// ErrExchange is returned when the authorization code is rejected.
	ErrExchange = errors.New("oauth code exchange failed")
)

// Provider is the sign-in surface used by handlers.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}

// GitHub exchanges authorization codes and resolves the account email.
type GitHub struct {
	config     *oauth2.Config
	apiBaseURL string
}

// NewGitHub creates a GitHub provider requesting the user:email scope.
func NewGitHub(clientID, clientSecret, redirectURL string) *GitHub {
	return &GitHub{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"user:email"},
		},
		apiBaseURL: DefaultAPIBaseURL,
	}
}

// AuthCodeURL returns the GitHub consent URL carrying state.
func (g *GitHub) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

type githubUser struct {
	Login string `json:"login"`
	Email string `json:"email"`
}

// Exchange trades code for a token and returns the account's email, lower-cased.
func (g *GitHub) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchange, err)
	}
	client := g.config.Client(ctx, tok)

	var emails []githubEmail
	if err := g.getJSON(ctx, client, "/user/emails", &emails); err == nil {
		if email := pickEmail(emails); email != "" {
			return strings.ToLower(email), nil
		}
	}

	// Tokens without user:email still see the public profile email
	var user githubUser
	if err := g.getJSON(ctx, client, "/user", &user); err != nil {
		return "", err
	}
	if user.Email == "" {
		return "", ErrNoEmail
	}
	return strings.ToLower(user.Email), nil
}

// pickEmail prefers the primary verified address, then any verified one.
func pickEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}

func (g *GitHub) getJSON(ctx context.Context, client *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("github %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode github %s: %w", path, err)
	}
	return nil
}
