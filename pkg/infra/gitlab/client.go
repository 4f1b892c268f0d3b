package gitlab

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/xanzy/go-gitlab"

	"github.com/determinatesystems/flakehub-push/pkg/domain/interfaces"
	"github.com/determinatesystems/flakehub-push/pkg/domain/model"
)

type client struct {
	gitlabClient *gitlab.Client
}

// NewClient creates a read-only GitLab client. baseURL overrides the
// default https://gitlab.com API endpoint for self-hosted instances.
func NewClient(token, baseURL string) (interfaces.GitLabClient, error) {
	var opts []gitlab.ClientOptionFunc
	if baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(baseURL))
	}

	gl, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitLab client")
	}
	return &client{gitlabClient: gl}, nil
}

// ResolveProject fetches topics and description for the project at the
// given full path. GitLab does not report a license identifier, so
// SPDXIdentifier is always empty here.
func (c *client) ResolveProject(ctx context.Context, path string) (*model.ForgeRepo, error) {
	project, _, err := c.gitlabClient.Projects.GetProject(path, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch project from the GitLab API",
			goerr.V("path", path))
	}

	return &model.ForgeRepo{
		Topics:      project.Topics,
		Description: project.Description,
		ProjectID:   int64(project.ID),
	}, nil
}
