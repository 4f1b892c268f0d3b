// Package flakehub implements the client side of the registry's
// three-phase publish protocol: stage the release metadata, transfer the
// tarball to the presigned URL, then publish. The phases are strictly
// sequential; each one's authorization and integrity data depends on the
// values declared by the previous one.
package flakehub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/determinatesystems/flakehub-push/pkg/domain/interfaces"
	"github.com/determinatesystems/flakehub-push/pkg/domain/model"
	"github.com/determinatesystems/flakehub-push/pkg/domain/types"
)

const userAgent = "flakehub-push"

type client struct {
	host        *url.URL
	bearerToken string
	httpClient  *http.Client
}

// NewClient creates a registry client for the given host, authenticating
// every request with the bearer token. It satisfies
// interfaces.RegistryFactory.
func NewClient(host, bearerToken string) (interfaces.RegistryClient, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse the registry host URL",
			goerr.V("host", host), goerr.T(types.ErrTagConfig))
	}

	return &client{
		host:        u,
		bearerToken: bearerToken,
		httpClient:  http.DefaultClient,
	}, nil
}

// Stage POSTs the release metadata. The request path declares the tarball
// length and hash the transfer phase must later match. A 409 means a
// release for this name/version already exists and comes back as an error
// tagged ErrTagConflict; the caller decides whether that is fatal.
func (c *client) Stage(ctx context.Context, uploadName, version string, meta *model.ReleaseMetadata, tarball *model.Tarball) (*model.StageResult, error) {
	logger := ctxlog.From(ctx)

	stageURL := c.host.JoinPath("upload", uploadName, version,
		fmt.Sprintf("%d", len(tarball.Bytes)), tarball.HashBase64)
	logger.Debug("computed release metadata POST URL", slog.String("url", stageURL.String()))

	payload, err := json.Marshal(meta)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to serialize release metadata")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, stageURL.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build the stage request")
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send release metadata")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var result model.StageResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, goerr.Wrap(err, "failed to decode the stage response")
		}
		return &result, nil

	case http.StatusConflict:
		logger.Info("release already exists; flakehub-push will not upload it again",
			slog.String("upload_name", uploadName),
			slog.String("version", version),
			slog.String("revision", meta.Revision),
		)
		return nil, goerr.New(fmt.Sprintf("%s/%s already exists", uploadName, version),
			goerr.V("upload_name", uploadName), goerr.V("version", version),
			goerr.T(types.ErrTagConflict))

	case http.StatusUnauthorized:
		return nil, goerr.New("unauthorized: "+readBody(resp.Body), goerr.T(types.ErrTagUnauthorized))

	case http.StatusBadRequest:
		return nil, goerr.New("bad request: "+readBody(resp.Body), goerr.T(types.ErrTagBadRequest))

	default:
		return nil, goerr.New(fmt.Sprintf("status %d from metadata POST: %s", resp.StatusCode, readBody(resp.Body)))
	}
}

// Transfer PUTs the tarball bytes to the presigned URL returned by Stage.
// The integrity header repeats the hash declared in the stage path.
func (c *client) Transfer(ctx context.Context, uploadURL string, tarball *model.Tarball) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(tarball.Bytes))
	if err != nil {
		return goerr.Wrap(err, "failed to build the tarball PUT request")
	}
	req.ContentLength = int64(len(tarball.Bytes))
	req.Header.Set("x-amz-checksum-sha256", tarball.HashBase64)
	req.Header.Set("Content-Type", "application/gzip")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to send tarball PUT")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return goerr.New(fmt.Sprintf("got %d status from tarball PUT request", resp.StatusCode))
	}
	return nil
}

// Publish makes the transferred release visible.
func (c *client) Publish(ctx context.Context, releaseID uuid.UUID) error {
	publishURL := c.host.JoinPath("publish", releaseID.String())
	ctxlog.From(ctx).Debug("computed publish POST URL", slog.String("url", publishURL.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, publishURL.String(), nil)
	if err != nil {
		return goerr.Wrap(err, "failed to build the publish request")
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to send publish POST")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return goerr.New(fmt.Sprintf("status %d from publish POST: %s", resp.StatusCode, readBody(resp.Body)))
	}
	return nil
}

func readBody(r io.Reader) string {
	body, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return string(body)
}
