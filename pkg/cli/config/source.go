package config

import (
	"context"
	"log/slog"
	"os"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/determinatesystems/flakehub-push/pkg/domain/model"
)

// Source holds the checkout-related configuration: which repository is
// being pushed, where its working tree lives, and how its name maps onto
// the registry.
type Source struct {
	Repository             string
	Name                   string
	Directory              string
	GitRoot                string
	Rev                    string
	DisableRenameSubgroups bool
}

// Flags returns CLI flags for source configuration
func (c *Source) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository",
			Usage:       "The owner/repo pair (or owner/subgroups.../repo path) being pushed",
			Destination: &c.Repository,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_REPOSITORY"),
		},
		&cli.StringFlag{
			Name:        "name",
			Usage:       "Override the upload name, formatted like owner-name/flake-name",
			Destination: &c.Name,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_NAME"),
		},
		&cli.StringFlag{
			Name:        "directory",
			Usage:       "The flake subdirectory relative to the git root",
			Destination: &c.Directory,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_DIRECTORY"),
		},
		&cli.StringFlag{
			Name:        "git-root",
			Usage:       "The root of the git checkout (defaults to the current directory)",
			Destination: &c.GitRoot,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_GIT_ROOT"),
		},
		&cli.StringFlag{
			Name:        "rev",
			Usage:       "Override the revision resolved from the local checkout",
			Destination: &c.Rev,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_REV"),
		},
		&cli.BoolFlag{
			Name:        "disable-rename-subgroups",
			Usage:       "Require the repository to be exactly owner/repo instead of flattening subgroups",
			Destination: &c.DisableRenameSubgroups,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_DISABLE_RENAME_SUBGROUPS"),
		},
	}
}

// Backfill populates unset values from the environment hosting the run.
// This is the single pass that turns scattered platform env vars into
// configuration, so everything downstream stays a pure function of it.
func (c *Source) Backfill(ctx context.Context, env model.ExecutionEnvironment) {
	logger := ctxlog.From(ctx)

	switch env {
	case model.EnvironmentGitHub:
		if c.Repository == "" {
			if v := os.Getenv("GITHUB_REPOSITORY"); v != "" {
				logger.Debug("got repository from GITHUB_REPOSITORY", slog.String("repository", v))
				c.Repository = v
			}
		}
		if c.GitRoot == "" {
			if v := os.Getenv("GITHUB_WORKSPACE"); v != "" {
				logger.Debug("got git root from GITHUB_WORKSPACE", slog.String("git_root", v))
				c.GitRoot = v
			}
		}
	case model.EnvironmentGitLab:
		if c.Repository == "" {
			if v := os.Getenv("CI_PROJECT_PATH"); v != "" {
				logger.Debug("got repository from CI_PROJECT_PATH", slog.String("repository", v))
				c.Repository = v
			}
		}
		if c.GitRoot == "" {
			if v := os.Getenv("CI_PROJECT_DIR"); v != "" {
				logger.Debug("got git root from CI_PROJECT_DIR", slog.String("git_root", v))
				c.GitRoot = v
			}
		}
	}

	if c.GitRoot == "" {
		if wd, err := os.Getwd(); err == nil {
			c.GitRoot = wd
		}
	}
}
