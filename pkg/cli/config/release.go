package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/determinatesystems/flakehub-push/pkg/domain/model"
	"github.com/determinatesystems/flakehub-push/pkg/domain/types"
)

// Release holds versioning and labeling configuration.
type Release struct {
	Tag                string
	Rolling            bool
	RollingMinorRaw    string
	Labels             []string
	ExtraTags          []string
	SPDXExpression     string
	Mirror             bool
	IncludeOutputPaths bool
}

// Flags returns CLI flags for release configuration
func (c *Release) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "tag",
			Usage:       "The semver tag to release (detected from GITHUB_REF_NAME or CI_COMMIT_TAG)",
			Destination: &c.Tag,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_TAG"),
		},
		&cli.BoolFlag{
			Name:        "rolling",
			Usage:       "Publish a rolling release tracking the default branch instead of a tag",
			Destination: &c.Rolling,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_ROLLING"),
		},
		&cli.StringFlag{
			Name:        "rolling-minor",
			Usage:       "Use a specific minor version line for rolling releases (eg 2 for 0.2)",
			Destination: &c.RollingMinorRaw,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_ROLLING_MINOR"),
		},
		&cli.StringSliceFlag{
			Name:        "extra-labels",
			Usage:       "Labels to apply to the release in addition to platform topics",
			Destination: &c.Labels,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_EXTRA_LABELS"),
		},
		&cli.StringSliceFlag{
			Name:        "extra-tags",
			Usage:       "Deprecated spelling of --extra-labels",
			Destination: &c.ExtraTags,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_EXTRA_TAGS"),
		},
		&cli.StringFlag{
			Name:        "spdx-expression",
			Usage:       "The SPDX license expression of the release (detected from the platform when unset)",
			Destination: &c.SPDXExpression,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_SPDX_EXPRESSION"),
		},
		&cli.BoolFlag{
			Name:        "mirror",
			Usage:       "Mark the release as mirrored from another source",
			Destination: &c.Mirror,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_MIRROR"),
		},
		&cli.BoolFlag{
			Name:        "include-output-paths",
			Usage:       "Include output store paths in the uploaded output graph",
			Destination: &c.IncludeOutputPaths,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_INCLUDE_OUTPUT_PATHS"),
		},
	}
}

// RollingMinor parses the optional rolling minor line. nil means unset.
func (c *Release) RollingMinor() (*uint64, error) {
	if c.RollingMinorRaw == "" {
		return nil, nil
	}
	minor, err := strconv.ParseUint(c.RollingMinorRaw, 10, 64)
	if err != nil {
		return nil, goerr.Wrap(err, "the --rolling-minor argument must be a non-negative integer",
			goerr.V("rolling_minor", c.RollingMinorRaw), goerr.T(types.ErrTagConfig))
	}
	return &minor, nil
}

// Backfill populates the tag from the platform ref when unset.
func (c *Release) Backfill(ctx context.Context, env model.ExecutionEnvironment) {
	if c.Tag != "" {
		return
	}

	logger := ctxlog.From(ctx)
	switch env {
	case model.EnvironmentGitHub:
		if v := os.Getenv("GITHUB_REF_NAME"); v != "" {
			logger.Debug("got tag from GITHUB_REF_NAME", slog.String("tag", v))
			c.Tag = v
		}
	case model.EnvironmentGitLab:
		if v := os.Getenv("CI_COMMIT_TAG"); v != "" {
			logger.Debug("got tag from CI_COMMIT_TAG", slog.String("tag", v))
			c.Tag = v
		}
	}
}
