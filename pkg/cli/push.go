package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/determinatesystems/flakehub-push/pkg/cli/config"
	"github.com/determinatesystems/flakehub-push/pkg/domain/interfaces"
	"github.com/determinatesystems/flakehub-push/pkg/domain/model"
	"github.com/determinatesystems/flakehub-push/pkg/domain/types"
	"github.com/determinatesystems/flakehub-push/pkg/infra/flakehub"
	gitinfra "github.com/determinatesystems/flakehub-push/pkg/infra/git"
	githubinfra "github.com/determinatesystems/flakehub-push/pkg/infra/github"
	gitlabinfra "github.com/determinatesystems/flakehub-push/pkg/infra/gitlab"
	"github.com/determinatesystems/flakehub-push/pkg/infra/nix"
	"github.com/determinatesystems/flakehub-push/pkg/infra/token"
	"github.com/determinatesystems/flakehub-push/pkg/usecase"
	"github.com/determinatesystems/flakehub-push/pkg/utils/ciannotate"
)

func runPush(ctx context.Context, registryCfg *config.Registry, sourceCfg *config.Source, releaseCfg *config.Release, authCfg *config.Auth) error {
	logger := ctxlog.From(ctx)

	env := model.ClassifyEnvironment()
	logger.Debug("classified execution environment", slog.String("environment", env.String()))

	// One backfill pass per environment; resolvers downstream never read
	// the process environment themselves.
	sourceCfg.Backfill(ctx, env)
	releaseCfg.Backfill(ctx, env)

	visibility, err := model.ParseVisibility(registryCfg.Visibility)
	if err != nil {
		return err
	}

	rollingMinor, err := releaseCfg.RollingMinor()
	if err != nil {
		return err
	}

	if sourceCfg.Repository == "" {
		return goerr.New("could not determine repository name, pass --repository formatted like `determinatesystems/flakehub-push`",
			goerr.T(types.ErrTagConfig))
	}

	var githubClient interfaces.GitHubClient
	if authCfg.GitHubToken != "" {
		githubClient = githubinfra.NewClient(authCfg.GitHubToken)
	}

	var gitlabClient interfaces.GitLabClient
	if env == model.EnvironmentGitLab {
		if glToken := os.Getenv("GITLAB_TOKEN"); glToken != "" {
			gitlabClient, err = gitlabinfra.NewClient(glToken, os.Getenv("CI_SERVER_URL"))
			if err != nil {
				logger.Debug("skipping GitLab API access", slog.Any("error", err))
			}
		}
	}

	req := &model.PushRequest{
		Environment:            env,
		Host:                   registryCfg.Host,
		Visibility:             visibility,
		Repository:             sourceCfg.Repository,
		ExplicitName:           sourceCfg.Name,
		DisableRenameSubgroups: sourceCfg.DisableRenameSubgroups,
		GitRoot:                sourceCfg.GitRoot,
		Directory:              sourceCfg.Directory,
		Rev:                    sourceCfg.Rev,
		Tag:                    releaseCfg.Tag,
		Rolling:                releaseCfg.Rolling,
		RollingMinor:           rollingMinor,
		Labels:                 releaseCfg.Labels,
		ExtraTags:              releaseCfg.ExtraTags,
		SPDXExpression:         releaseCfg.SPDXExpression,
		Mirror:                 releaseCfg.Mirror,
		JWTIssuerURI:           authCfg.JWTIssuerURI,
		ErrorOnConflict:        registryCfg.ErrorOnConflict,
		IncludeOutputPaths:     releaseCfg.IncludeOutputPaths,
	}

	uc := usecase.NewPush(
		gitinfra.NewResolver(),
		nix.NewEvaluator(),
		githubClient,
		gitlabClient,
		token.Factory{},
		flakehub.NewClient,
	)

	if err := uc.Execute(ctx, req); err != nil {
		if goerr.HasTag(err, types.ErrTagUnauthorized) ||
			goerr.HasTag(err, types.ErrTagConflict) ||
			goerr.HasTag(err, types.ErrTagBadRequest) {
			ciannotate.Annotate(env, err.Error())
		}
		return err
	}

	return nil
}
