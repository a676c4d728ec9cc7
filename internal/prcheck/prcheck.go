// Package prcheck resolves pull-request URLs recorded on beads against the
// GitHub API, so the dashboard can show whether a review is open, merged,
// or closed without the user leaving the board.
package prcheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// ErrUnsupportedHost is returned for pr_url values pointing somewhere
// other than github.com. Callers should treat it as "state unknown", not
// as a failure.
var ErrUnsupportedHost = errors.New("prcheck: host not supported")

// Ref identifies one pull request.
type Ref struct {
	Owner  string
	Repo   string
	Number int
}

// Status is the resolved state of a pull request.
type Status struct {
	Ref    Ref
	State  string // open or closed
	Merged bool
	Draft  bool
	Title  string
}

// ParsePRURL extracts the owner, repo, and PR number from a GitHub pull
// request URL such as https://github.com/acme/widgets/pull/123. Non-GitHub
// hosts return ErrUnsupportedHost.
func ParsePRURL(raw string) (Ref, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Ref{}, fmt.Errorf("prcheck: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Ref{}, fmt.Errorf("prcheck: not an http(s) url: %s", raw)
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host != "github.com" {
		return Ref{}, fmt.Errorf("%w: %s", ErrUnsupportedHost, host)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 4 || parts[2] != "pull" {
		return Ref{}, fmt.Errorf("prcheck: not a pull request path: %s", u.Path)
	}
	num, err := strconv.Atoi(parts[3])
	if err != nil || num <= 0 {
		return Ref{}, fmt.Errorf("prcheck: invalid pull request number: %s", parts[3])
	}
	return Ref{Owner: parts[0], Repo: parts[1], Number: num}, nil
}

// Checker queries GitHub for pull-request state.
type Checker struct {
	client *github.Client
}

// NewChecker creates a Checker. An empty token produces an unauthenticated
// client limited to 60 requests per hour.
func NewChecker(token string) *Checker {
	var hc *http.Client
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(context.Background(), src)
	}
	return &Checker{client: github.NewClient(hc)}
}

// NewCheckerWithHTTPClient creates a Checker against a custom endpoint.
// This is primarily used for testing with httptest servers.
func NewCheckerWithHTTPClient(httpClient *http.Client, baseURL string) *Checker {
	client := github.NewClient(httpClient)
	if baseURL != "" {
		client, _ = client.WithEnterpriseURLs(baseURL, baseURL)
	}
	return &Checker{client: client}
}

// Check resolves the pull request behind a pr_url. Rate-limit errors come
// back wrapped so callers can log and skip rather than fail the request.
func (c *Checker) Check(ctx context.Context, prURL string) (Status, error) {
	ref, err := ParsePRURL(prURL)
	if err != nil {
		return Status{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pr, resp, err := c.client.PullRequests.Get(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusForbidden {
			var rle *github.RateLimitError
			if errors.As(err, &rle) {
				return Status{}, fmt.Errorf("prcheck: rate limited: %w", err)
			}
		}
		return Status{}, fmt.Errorf("prcheck: get pull request: %w", err)
	}

	return Status{
		Ref:    ref,
		State:  pr.GetState(),
		Merged: pr.GetMerged(),
		Draft:  pr.GetDraft(),
		Title:  pr.GetTitle(),
	}, nil
}
