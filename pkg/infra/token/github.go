// Package token implements the four credential strategies that yield a
// bearer token for the registry, one per execution environment. Providers
// are constructed cheaply at pipeline-build time; the side-effecting
// acquisition happens later via AcquireToken, after the expensive flake
// evaluation, so short-lived CI-issued tokens (GitHub's OIDC JWTs live
// around five minutes) are fresh when first used.
package token

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/m-mizutani/goerr/v2"

	"github.com/determinatesystems/flakehub-push/pkg/domain/interfaces"
	"github.com/determinatesystems/flakehub-push/pkg/domain/types"
)

const actionsTokenRemediation = `no ACTIONS_ID_TOKEN_REQUEST_TOKEN found, flakehub-push requires a JWT. To provide this, add permissions to your job, eg:

# ...
jobs:
  example:
    runs-on: ubuntu-latest
    permissions:
      id-token: write # Authenticate against FlakeHub
      contents: read
    steps:
    - uses: actions/checkout@v4
    # ...`

type gitHubSource struct {
	host       string
	httpClient *http.Client
}

// NewGitHub creates a TokenSource that exchanges the GitHub Actions OIDC
// request token for a registry JWT. The audience is the host component of
// the registry URL.
func NewGitHub(host string) interfaces.TokenSource {
	return &gitHubSource{host: host, httpClient: http.DefaultClient}
}

func (s *gitHubSource) AcquireToken(ctx context.Context) (string, error) {
	hostURL, err := url.Parse(s.host)
	if err != nil || hostURL.Host == "" {
		return "", goerr.New("registry host must be a valid URL (eg https://api.flakehub.com)",
			goerr.V("host", s.host), goerr.T(types.ErrTagConfig))
	}
	audience := hostURL.Host

	requestToken, ok := os.LookupEnv("ACTIONS_ID_TOKEN_REQUEST_TOKEN")
	if !ok || requestToken == "" {
		return "", goerr.New(actionsTokenRemediation, goerr.T(types.ErrTagConfig))
	}
	requestURL, ok := os.LookupEnv("ACTIONS_ID_TOKEN_REQUEST_URL")
	if !ok || requestURL == "" {
		return "", goerr.New("ACTIONS_ID_TOKEN_REQUEST_URL is required if ACTIONS_ID_TOKEN_REQUEST_TOKEN is also present",
			goerr.T(types.ErrTagConfig))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL+"&audience="+url.QueryEscape(audience), nil)
	if err != nil {
		return "", goerr.Wrap(err, "failed to build the Actions ID token request")
	}
	req.Header.Set("Authorization", "Bearer "+requestToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to get the Actions ID bearer token")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read the Actions ID bearer token response")
	}

	var payload struct {
		Value *string `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", goerr.Wrap(err, "failed to decode JSON from the Actions ID bearer token response")
	}
	if payload.Value == nil {
		return "", goerr.New("no `value` field in the Actions ID bearer token response")
	}

	return *payload.Value, nil
}
