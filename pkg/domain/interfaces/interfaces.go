package interfaces

import (
	"context"

	"github.com/google/uuid"

	"github.com/determinatesystems/flakehub-push/pkg/domain/model"
)

// PushUseCase is the whole pipeline: resolve the release context, then
// stage, transfer, and publish.
type PushUseCase interface {
	Execute(ctx context.Context, req *model.PushRequest) error
}

// GitHubClient defines the read-only GitHub queries used to enrich the
// release context (authoritative commit count, topics, license, ids).
type GitHubClient interface {
	// ResolveRepository fetches repository data for the given revision
	ResolveRepository(ctx context.Context, owner, name, revision string) (*model.ForgeRepo, error)
}

// GitLabClient defines the read-only GitLab queries used to enrich the
// release context.
type GitLabClient interface {
	// ResolveProject fetches project data by its full path (group/.../project)
	ResolveProject(ctx context.Context, path string) (*model.ForgeRepo, error)
}

// RevisionResolver derives the HEAD commit id and, when history is
// complete, the reachable commit count from a local working tree.
type RevisionResolver interface {
	Resolve(gitRoot string) (*model.RevisionInfo, error)
}

// FlakeEvaluator is the external packaging collaborator: it evaluates the
// flake at gitRoot/subdir and produces metadata, an output graph, and a
// reproducible tarball.
type FlakeEvaluator interface {
	EvaluateAndPackage(ctx context.Context, gitRoot, subdir string, includeOutputPaths bool) (*model.FlakeArtifact, error)
}

// TokenSource yields a short-lived bearer credential for the registry.
// Acquisition is deferred until right before the publish protocol starts.
type TokenSource interface {
	AcquireToken(ctx context.Context) (string, error)
}

// TokenSourceFactory builds the TokenSource matching the execution
// environment. Selection happens at pipeline-build time; acquisition is
// deferred.
type TokenSourceFactory interface {
	GitHub(host string) TokenSource
	GitLab() TokenSource
	Generic() TokenSource
	LocalDev(issuerURI, owner, repository string, projectID, ownerID int64) TokenSource
}

// RegistryClient drives the three-phase publish protocol. The phases are
// strictly sequential: Stage must succeed before Transfer, and Transfer
// before Publish.
type RegistryClient interface {
	Stage(ctx context.Context, uploadName, version string, meta *model.ReleaseMetadata, tarball *model.Tarball) (*model.StageResult, error)
	Transfer(ctx context.Context, uploadURL string, tarball *model.Tarball) error
	Publish(ctx context.Context, releaseID uuid.UUID) error
}

// RegistryFactory builds a RegistryClient once a bearer token is known.
type RegistryFactory func(host, bearerToken string) (RegistryClient, error)
