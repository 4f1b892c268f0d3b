// Package nix invokes the external flake evaluation tool and packages its
// source tree into a reproducible tarball. The rest of the pipeline treats
// this package as an opaque collaborator behind interfaces.FlakeEvaluator.
package nix

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/determinatesystems/flakehub-push/pkg/domain/interfaces"
	"github.com/determinatesystems/flakehub-push/pkg/domain/model"
)

type evaluator struct{}

// NewEvaluator creates a FlakeEvaluator that shells out to the nix CLI.
func NewEvaluator() interfaces.FlakeEvaluator {
	return &evaluator{}
}

// EvaluateAndPackage resolves the flake at gitRoot/subdir, fetches its
// metadata and output graph, and builds a gzip tarball of the source tree
// with lastModified as the fixed mtime so the hash is reproducible for a
// given tree state. A temporary working directory holds the tarball while
// it is built and is removed on every exit path.
func (e *evaluator) EvaluateAndPackage(ctx context.Context, gitRoot, subdir string, includeOutputPaths bool) (*model.FlakeArtifact, error) {
	logger := ctxlog.From(ctx)
	flakeDir := filepath.Join(gitRoot, subdir)

	rawMetadata, err := runNix(ctx, "flake", "metadata", "--json", "--no-write-lock-file", flakeDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get flake metadata", goerr.V("flake_dir", flakeDir))
	}

	var metadata struct {
		URL          string `json:"url"`
		Path         string `json:"path"`
		LastModified *int64 `json:"lastModified"`
		Resolved     struct {
			Dir string `json:"dir"`
		} `json:"resolved"`
	}
	if err := json.Unmarshal(rawMetadata, &metadata); err != nil {
		return nil, goerr.Wrap(err, "failed to parse `nix flake metadata --json` output")
	}
	if metadata.URL == "" {
		return nil, goerr.New("could not get `url` attribute from `nix flake metadata --json` output")
	}
	if metadata.Path == "" {
		return nil, goerr.New("could not get `path` attribute from `nix flake metadata --json` output")
	}
	if metadata.LastModified == nil {
		return nil, goerr.New("`nix flake metadata` did not return a `lastModified` attribute")
	}
	logger.Debug("got flake metadata",
		slog.String("locked_url", metadata.URL),
		slog.Int64("last_modified", *metadata.LastModified),
	)

	// A stale lock file is refused here rather than silently updated.
	if _, err := os.Stat(filepath.Join(flakeDir, "flake.lock")); err == nil {
		if _, err := runNix(ctx, "flake", "metadata", "--json", "--no-update-lock-file", flakeDir); err != nil {
			return nil, goerr.Wrap(err, "the flake.lock is out of date and must be updated before pushing",
				goerr.V("flake_dir", flakeDir))
		}
	}

	showArgs := []string{"flake", "show", "--json", "--no-write-lock-file"}
	if includeOutputPaths {
		showArgs = append(showArgs, "--all-systems")
	}
	showArgs = append(showArgs, metadata.URL)
	outputs, err := runNix(ctx, showArgs...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get flake outputs", goerr.V("locked_url", metadata.URL))
	}

	source := metadata.Path
	if metadata.Resolved.Dir != "" {
		source = filepath.Join(metadata.Path, metadata.Resolved.Dir)
	}
	logger.Debug("found flake source", slog.String("source", source))

	tempDir, err := os.MkdirTemp("", "flakehub-push-*")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create a temporary directory")
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			logger.Warn("failed to remove temporary directory", slog.String("temp_dir", tempDir), slog.Any("error", err))
		}
	}()

	tarball, err := buildTarball(source, *metadata.LastModified)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to make the release tarball", goerr.V("source", source))
	}
	if err := os.WriteFile(filepath.Join(tempDir, "release.tar.gz"), tarball.Bytes, 0o600); err != nil {
		return nil, goerr.Wrap(err, "failed to write the release tarball")
	}
	logger.Debug("built release tarball",
		slog.Int("tarball_len", len(tarball.Bytes)),
		slog.String("tarball_hash_base64", tarball.HashBase64),
	)

	return &model.FlakeArtifact{
		RawMetadata: rawMetadata,
		Outputs:     outputs,
		Tarball:     tarball,
		SourceDir:   source,
	}, nil
}

func runNix(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "nix", args...)
	stdout, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, goerr.Wrap(err, "nix command failed",
				goerr.V("args", args),
				goerr.V("stderr", string(exitErr.Stderr)),
			)
		}
		return nil, goerr.Wrap(err, "failed to execute nix", goerr.V("args", args))
	}
	return stdout, nil
}
