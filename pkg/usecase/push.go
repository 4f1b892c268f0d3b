package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/determinatesystems/flakehub-push/pkg/domain/interfaces"
	"github.com/determinatesystems/flakehub-push/pkg/domain/model"
	"github.com/determinatesystems/flakehub-push/pkg/domain/types"
	"github.com/determinatesystems/flakehub-push/pkg/utils/ciannotate"
)

type pushUseCase struct {
	revision    interfaces.RevisionResolver
	evaluator   interfaces.FlakeEvaluator
	github      interfaces.GitHubClient // nil when no GitHub token is available
	gitlab      interfaces.GitLabClient // nil when no GitLab API access is available
	tokens      interfaces.TokenSourceFactory
	newRegistry interfaces.RegistryFactory
}

// NewPush creates the push pipeline. The github and gitlab clients may be
// nil when the corresponding platform cannot be queried; the pipeline then
// relies on locally resolvable data alone.
func NewPush(
	revision interfaces.RevisionResolver,
	evaluator interfaces.FlakeEvaluator,
	github interfaces.GitHubClient,
	gitlab interfaces.GitLabClient,
	tokens interfaces.TokenSourceFactory,
	newRegistry interfaces.RegistryFactory,
) interfaces.PushUseCase {
	return &pushUseCase{
		revision:    revision,
		evaluator:   evaluator,
		github:      github,
		gitlab:      gitlab,
		tokens:      tokens,
		newRegistry: newRegistry,
	}
}

// Execute resolves the release context and drives the stage, transfer,
// publish sequence. Token acquisition is deliberately deferred until after
// the flake evaluation so short-lived CI tokens are fresh when first used.
func (uc *pushUseCase) Execute(ctx context.Context, req *model.PushRequest) error {
	logger := ctxlog.From(ctx)

	identity, err := ResolveNames(req.ExplicitName, req.Repository, !req.DisableRenameSubgroups)
	if err != nil {
		return err
	}

	localRev, err := uc.revision.Resolve(req.GitRoot)
	if err != nil {
		return err
	}
	revision := localRev.Revision
	if req.Rev != "" {
		revision = req.Rev
	}
	commitCount := localRev.CommitCount

	spdx := req.SPDXExpression
	var topics []string
	var forgeDescription string
	var tokenSource interfaces.TokenSource

	switch {
	case req.JWTIssuerURI != "" && req.Environment != model.EnvironmentLocalDev:
		return goerr.New("specifying --jwt-issuer-uri when running in CI is invalid",
			goerr.V("environment", req.Environment.String()), goerr.T(types.ErrTagConfig))

	case req.Environment == model.EnvironmentGitHub:
		forge, err := uc.resolveGitHubRepo(ctx, identity, revision)
		if err != nil {
			return err
		}
		topics = forge.Topics
		forgeDescription = forge.Description
		spdx = reconcileSPDX(ctx, spdx, forge.SPDXIdentifier)
		// The API count is authoritative for the pushed revision.
		if commitCount != nil && forge.CommitCount != nil && *commitCount != *forge.CommitCount {
			logger.Debug("local and GitHub commit counts disagree, preferring GitHub",
				slog.Uint64("local", *commitCount),
				slog.Uint64("github", *forge.CommitCount),
			)
		}
		if forge.CommitCount != nil {
			commitCount = forge.CommitCount
		}
		tokenSource = uc.tokens.GitHub(req.Host)

	case req.Environment == model.EnvironmentGitLab:
		if uc.gitlab != nil {
			if forge, err := uc.gitlab.ResolveProject(ctx, req.Repository); err != nil {
				logger.Debug("skipping GitLab project enrichment", slog.Any("error", err))
			} else {
				topics = forge.Topics
				forgeDescription = forge.Description
			}
		}
		tokenSource = uc.tokens.GitLab()

	case req.Environment == model.EnvironmentGeneric:
		tokenSource = uc.tokens.Generic()

	case req.JWTIssuerURI != "":
		forge, err := uc.resolveGitHubRepo(ctx, identity, revision)
		if err != nil {
			return err
		}
		topics = forge.Topics
		forgeDescription = forge.Description
		spdx = reconcileSPDX(ctx, spdx, forge.SPDXIdentifier)
		if forge.CommitCount != nil {
			commitCount = forge.CommitCount
		}
		tokenSource = uc.tokens.LocalDev(req.JWTIssuerURI, identity.ProjectOwner, req.Repository, forge.ProjectID, forge.OwnerID)

	default:
		return goerr.New("can't determine execution environment; outside CI you must pass --jwt-issuer-uri to use a development token issuer",
			goerr.T(types.ErrTagConfig))
	}

	if commitCount == nil {
		return goerr.New("could not determine the commit count for this revision; the checkout is likely shallow, fetch the full history (eg fetch-depth: 0 with actions/checkout)",
			goerr.V("revision", revision), goerr.T(types.ErrTagConfig))
	}

	version, err := ResolveVersion(req.Tag, req.Rolling, req.RollingMinor, *commitCount, revision)
	if err != nil {
		return err
	}

	logger.Info("preparing release",
		slog.String("upload_name", identity.UploadName),
		slog.String("version", version),
		slog.String("revision", revision),
	)

	artifact, err := uc.evaluator.EvaluateAndPackage(ctx, req.GitRoot, req.Directory, req.IncludeOutputPaths)
	if err != nil {
		return err
	}

	meta, err := buildMetadata(ctx, req, identity, artifact, revision, *commitCount, topics, spdx, forgeDescription)
	if err != nil {
		return err
	}

	// Token acquisition happens last: the evaluation above can take long
	// enough for a CI-issued OIDC token to expire.
	bearerToken, err := tokenSource.AcquireToken(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to get the upload bearer token")
	}

	registry, err := uc.newRegistry(req.Host, bearerToken)
	if err != nil {
		return err
	}

	staged, err := registry.Stage(ctx, identity.UploadName, version, meta, artifact.Tarball)
	if err != nil {
		if goerr.HasTag(err, types.ErrTagConflict) && !req.ErrorOnConflict {
			// Re-running for an already published version is a no-op.
			return nil
		}
		return err
	}

	if err := registry.Transfer(ctx, staged.UploadURL, artifact.Tarball); err != nil {
		return err
	}

	if err := registry.Publish(ctx, staged.ReleaseID); err != nil {
		return err
	}

	logger.Info("successfully released new version",
		slog.String("upload_name", identity.UploadName),
		slog.String("version", version),
	)

	if req.Environment == model.EnvironmentGitHub {
		outputs := map[string]string{
			"flake_name":    identity.UploadName,
			"flake_version": version,
			"flakeref":      identity.UploadName + "/" + version,
		}
		for name, value := range outputs {
			if err := ciannotate.SetOutput(name, value); err != nil {
				logger.Warn("failed to record step output", slog.String("name", name), slog.Any("error", err))
			}
		}
	}

	return nil
}

func (uc *pushUseCase) resolveGitHubRepo(ctx context.Context, identity *model.ReleaseIdentity, revision string) (*model.ForgeRepo, error) {
	if uc.github == nil {
		return nil, goerr.New("could not determine the GitHub token, pass --github-token or set GITHUB_TOKEN",
			goerr.T(types.ErrTagConfig))
	}
	return uc.github.ResolveRepository(ctx, identity.ProjectOwner, identity.ProjectName, revision)
}

// reconcileSPDX backfills a missing SPDX expression from the platform, and
// warns when an explicitly passed one differs from what the platform
// detected.
func reconcileSPDX(ctx context.Context, explicit, detected string) string {
	logger := ctxlog.From(ctx)
	if detected == "NOASSERTION" {
		detected = ""
	}

	if explicit == "" {
		if detected != "" {
			logger.Debug("received SPDX identifier from the GitHub API", slog.String("spdx", detected))
		}
		return detected
	}
	if detected != "" && explicit != detected {
		logger.Warn("SPDX identifier was passed via argument, but GitHub's API suggests it may differ",
			slog.String("argument", explicit),
			slog.String("github", detected),
		)
	}
	return explicit
}

func buildMetadata(
	ctx context.Context,
	req *model.PushRequest,
	identity *model.ReleaseIdentity,
	artifact *model.FlakeArtifact,
	revision string,
	commitCount uint64,
	topics []string,
	spdx string,
	forgeDescription string,
) (*model.ReleaseMetadata, error) {
	var fields struct {
		Description *string `json:"description"`
	}
	if err := json.Unmarshal(artifact.RawMetadata, &fields); err != nil {
		return nil, goerr.Wrap(err, "`nix flake metadata --json` does not have a string `description` field")
	}
	description := fields.Description
	if description == nil && forgeDescription != "" {
		description = &forgeDescription
	}

	readme, err := findReadme(artifact.SourceDir)
	if err != nil {
		return nil, err
	}

	meta := &model.ReleaseMetadata{
		CommitCount:      commitCount,
		Description:      description,
		Outputs:          artifact.Outputs,
		RawFlakeMetadata: artifact.RawMetadata,
		Readme:           readme,
		Repo:             identity.UploadName,
		Revision:         revision,
		Visibility:       req.Visibility,
		Mirrored:         req.Mirror,
		Labels:           MergeLabels(ctx, req.Labels, req.ExtraTags, topics),
	}
	if req.Directory != "" {
		meta.SourceSubdirectory = &req.Directory
	}
	if spdx != "" {
		meta.SPDXIdentifier = &spdx
	}
	return meta, nil
}

func findReadme(dir string) (*string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to scan the source directory for a readme", goerr.V("dir", dir))
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.ToLower(entry.Name()) != "readme.md" {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read the readme", goerr.V("path", entry.Name()))
		}
		readme := string(content)
		return &readme, nil
	}
	return nil, nil
}
