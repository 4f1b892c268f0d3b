package token

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"

	"github.com/determinatesystems/flakehub-push/pkg/domain/interfaces"
	"github.com/determinatesystems/flakehub-push/pkg/domain/types"
)

type gitLabSource struct{}

// NewGitLab creates a TokenSource that reads the JWT GitLab provisioned
// for the job. GitLab requires the audience to be configured at the job
// level; the registry validates it server-side, so no network call happens
// here.
func NewGitLab() interfaces.TokenSource {
	return &gitLabSource{}
}

func (s *gitLabSource) AcquireToken(ctx context.Context) (string, error) {
	token, ok := os.LookupEnv("GITLAB_JWT_ID_TOKEN")
	if !ok || token == "" {
		return "", goerr.New("failed to get a JWT from GitLab. You must configure id_tokens in the job, eg:\n\n  id_tokens:\n    GITLAB_JWT_ID_TOKEN:\n      aud: api.flakehub.com",
			goerr.T(types.ErrTagConfig))
	}
	return token, nil
}
