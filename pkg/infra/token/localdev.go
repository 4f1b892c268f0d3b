package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/determinatesystems/flakehub-push/pkg/domain/interfaces"
)

type localDevSource struct {
	issuerURI  string
	owner      string
	repository string
	projectID  int64
	ownerID    int64
	httpClient *http.Client
}

// NewLocalDev creates a TokenSource that mints a development claim set and
// asks a mock issuer to sign it. Only usable outside CI, against a local
// registry; the ids come from a prior GitHub API query.
func NewLocalDev(issuerURI, owner, repository string, projectID, ownerID int64) interfaces.TokenSource {
	return &localDevSource{
		issuerURI:  issuerURI,
		owner:      owner,
		repository: repository,
		projectID:  projectID,
		ownerID:    ownerID,
		httpClient: http.DefaultClient,
	}
}

func (s *localDevSource) AcquireToken(ctx context.Context) (string, error) {
	ctxlog.From(ctx).Warn("running outside github/gitlab - minting a dev-signed JWT")

	claims, err := jwt.NewBuilder().
		Audience([]string{"flakehub-localhost"}).
		Issuer("flakehub-push-dev").
		Claim("repository", s.repository).
		Claim("repository_owner", s.owner).
		Claim("repository_id", fmt.Sprintf("%d", s.projectID)).
		Claim("repository_owner_id", fmt.Sprintf("%d", s.ownerID)).
		Build()
	if err != nil {
		return "", goerr.Wrap(err, "failed to build the development claim set")
	}

	body, err := json.Marshal(claims)
	if err != nil {
		return "", goerr.Wrap(err, "failed to serialize the development claim set")
	}

	endpoint, err := url.JoinPath(s.issuerURI, "token")
	if err != nil {
		return "", goerr.Wrap(err, "failed to build the JWT issuer URL", goerr.V("issuer", s.issuerURI))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", goerr.Wrap(err, "failed to build the JWT issuer request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to send request to the JWT issuer")
	}
	defer resp.Body.Close()

	token, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read the JWT issuer response")
	}

	return string(token), nil
}
