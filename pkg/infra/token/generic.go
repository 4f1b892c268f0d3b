package token

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"

	"github.com/determinatesystems/flakehub-push/pkg/domain/interfaces"
	"github.com/determinatesystems/flakehub-push/pkg/domain/types"
)

type genericSource struct{}

// NewGeneric creates a TokenSource for OIDC-capable CI platforms without
// dedicated support: the platform is expected to place a token in
// FLAKEHUB_PUSH_OIDC_TOKEN before the job starts.
func NewGeneric() interfaces.TokenSource {
	return &genericSource{}
}

func (s *genericSource) AcquireToken(ctx context.Context) (string, error) {
	token, ok := os.LookupEnv("FLAKEHUB_PUSH_OIDC_TOKEN")
	if !ok || token == "" {
		return "", goerr.New("missing FLAKEHUB_PUSH_OIDC_TOKEN environment variable",
			goerr.T(types.ErrTagConfig))
	}
	return token, nil
}
