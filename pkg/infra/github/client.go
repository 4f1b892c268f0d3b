package github

import (
	"context"
	"net/http"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"

	"github.com/determinatesystems/flakehub-push/pkg/domain/interfaces"
	"github.com/determinatesystems/flakehub-push/pkg/domain/model"
)

type client struct {
	githubClient *github.Client
}

// Option configures the GitHub client
type Option func(*client)

// WithHTTPClient overrides the underlying HTTP client (used in tests)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.githubClient = github.NewClient(hc)
	}
}

// WithBaseURL points the client at a different API endpoint (used in tests)
func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		if u, err := c.githubClient.BaseURL.Parse(baseURL); err == nil {
			c.githubClient.BaseURL = u
		}
	}
}

// NewClient creates a read-only GitHub client authenticated with the
// CI-provided token.
func NewClient(token string, options ...Option) interfaces.GitHubClient {
	c := &client{
		githubClient: github.NewClient(nil),
	}
	for _, opt := range options {
		opt(c)
	}
	c.githubClient = c.githubClient.WithAuthToken(token)
	return c
}

// ResolveRepository fetches the data needed to enrich a release: the
// authoritative commit count for the pushed revision, the repository
// topics, the detected SPDX license id, and the repository/owner database
// ids used by the development token issuer.
func (c *client) ResolveRepository(ctx context.Context, owner, name, revision string) (*model.ForgeRepo, error) {
	repo, _, err := c.githubClient.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch repository from the GitHub API; does the repository exist and does your GitHub token have access to it?",
			goerr.V("owner", owner), goerr.V("name", name))
	}

	topics, _, err := c.githubClient.Repositories.ListAllTopics(ctx, owner, name)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch repository topics from the GitHub API",
			goerr.V("owner", owner), goerr.V("name", name))
	}

	count, err := c.commitCount(ctx, owner, name, revision)
	if err != nil {
		return nil, err
	}

	result := &model.ForgeRepo{
		CommitCount:    &count,
		SPDXIdentifier: repo.GetLicense().GetSPDXID(),
		ProjectID:      repo.GetID(),
		OwnerID:        repo.GetOwner().GetID(),
		Topics:         topics,
		Description:    repo.GetDescription(),
	}
	return result, nil
}

// commitCount asks the commit listing endpoint for a single-commit page
// and reads the total from the pagination trailer. A history small enough
// to fit in one page reports no last page, so the page length is the count.
func (c *client) commitCount(ctx context.Context, owner, name, revision string) (uint64, error) {
	commits, resp, err := c.githubClient.Repositories.ListCommits(ctx, owner, name, &github.CommitsListOptions{
		SHA:         revision,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count commits via the GitHub API; is the current commit pushed to GitHub?",
			goerr.V("owner", owner), goerr.V("name", name), goerr.V("revision", revision))
	}

	if resp.LastPage > 0 {
		return uint64(resp.LastPage), nil
	}
	return uint64(len(commits)), nil
}
