package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/determinatesystems/flakehub-push/pkg/domain/interfaces"
	"github.com/determinatesystems/flakehub-push/pkg/domain/model"
	"github.com/determinatesystems/flakehub-push/pkg/domain/types"
	"github.com/determinatesystems/flakehub-push/pkg/usecase"
)

// MockRevisionResolver is a mock implementation of RevisionResolver
type MockRevisionResolver struct {
	info *model.RevisionInfo
	err  error
}

func (m *MockRevisionResolver) Resolve(gitRoot string) (*model.RevisionInfo, error) {
	return m.info, m.err
}

// MockEvaluator is a mock implementation of FlakeEvaluator
type MockEvaluator struct {
	artifact *model.FlakeArtifact
	err      error
	order    *[]string
}

func (m *MockEvaluator) EvaluateAndPackage(ctx context.Context, gitRoot, subdir string, includeOutputPaths bool) (*model.FlakeArtifact, error) {
	if m.order != nil {
		*m.order = append(*m.order, "evaluate")
	}
	return m.artifact, m.err
}

// MockGitHubClient is a mock implementation of GitHubClient
type MockGitHubClient struct {
	resolveFunc func(ctx context.Context, owner, name, revision string) (*model.ForgeRepo, error)
}

func (m *MockGitHubClient) ResolveRepository(ctx context.Context, owner, name, revision string) (*model.ForgeRepo, error) {
	return m.resolveFunc(ctx, owner, name, revision)
}

// MockTokenSource records when the token is acquired relative to the other
// pipeline steps.
type MockTokenSource struct {
	token string
	err   error
	order *[]string
}

func (m *MockTokenSource) AcquireToken(ctx context.Context) (string, error) {
	if m.order != nil {
		*m.order = append(*m.order, "token")
	}
	return m.token, m.err
}

// MockTokenFactory is a mock implementation of TokenSourceFactory
type MockTokenFactory struct {
	source   *MockTokenSource
	selected string
}

func (m *MockTokenFactory) GitHub(host string) interfaces.TokenSource {
	m.selected = "github"
	return m.source
}

func (m *MockTokenFactory) GitLab() interfaces.TokenSource {
	m.selected = "gitlab"
	return m.source
}

func (m *MockTokenFactory) Generic() interfaces.TokenSource {
	m.selected = "generic"
	return m.source
}

func (m *MockTokenFactory) LocalDev(issuerURI, owner, repository string, projectID, ownerID int64) interfaces.TokenSource {
	m.selected = "localdev"
	return m.source
}

// MockRegistry is a mock implementation of RegistryClient
type MockRegistry struct {
	stageErr    error
	transferErr error
	publishErr  error

	stagedName    string
	stagedVersion string
	stagedMeta    *model.ReleaseMetadata
	transferURL   string
	publishedID   uuid.UUID
	transferCalls int
	publishCalls  int

	result *model.StageResult
	order  *[]string
}

func (m *MockRegistry) Stage(ctx context.Context, uploadName, version string, meta *model.ReleaseMetadata, tarball *model.Tarball) (*model.StageResult, error) {
	if m.order != nil {
		*m.order = append(*m.order, "stage")
	}
	m.stagedName = uploadName
	m.stagedVersion = version
	m.stagedMeta = meta
	if m.stageErr != nil {
		return nil, m.stageErr
	}
	return m.result, nil
}

func (m *MockRegistry) Transfer(ctx context.Context, uploadURL string, tarball *model.Tarball) error {
	if m.order != nil {
		*m.order = append(*m.order, "transfer")
	}
	m.transferCalls++
	m.transferURL = uploadURL
	return m.transferErr
}

func (m *MockRegistry) Publish(ctx context.Context, releaseID uuid.UUID) error {
	if m.order != nil {
		*m.order = append(*m.order, "publish")
	}
	m.publishCalls++
	m.publishedID = releaseID
	return m.publishErr
}

type pushFixture struct {
	revision *MockRevisionResolver
	eval     *MockEvaluator
	github   *MockGitHubClient
	tokens   *MockTokenFactory
	registry *MockRegistry

	factoryHost  string
	factoryToken string

	order []string
}

func newPushFixture(t *testing.T) *pushFixture {
	sourceDir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(sourceDir, "README.md"), []byte("# hello"), 0o644))

	f := &pushFixture{}
	f.revision = &MockRevisionResolver{
		info: &model.RevisionInfo{Revision: "b2ce5fa", CommitCount: uint64Ptr(614)},
	}
	f.eval = &MockEvaluator{
		artifact: &model.FlakeArtifact{
			RawMetadata: json.RawMessage(`{"description":"a test flake"}`),
			Outputs:     json.RawMessage(`{"packages":{}}`),
			Tarball:     &model.Tarball{Bytes: []byte("tar"), HashBase64: "aGFzaA=="},
			SourceDir:   sourceDir,
		},
		order: &f.order,
	}
	f.tokens = &MockTokenFactory{
		source: &MockTokenSource{token: "bearer-token", order: &f.order},
	}
	f.registry = &MockRegistry{
		result: &model.StageResult{
			UploadURL: "https://s3.example.com/upload",
			ReleaseID: uuid.MustParse("c7f3b6a0-0000-4000-8000-000000000001"),
		},
		order: &f.order,
	}
	return f
}

func (f *pushFixture) useCase() interfaces.PushUseCase {
	// A typed nil must not leak into the interface; the pipeline treats a
	// nil client as "platform not queryable".
	var github interfaces.GitHubClient
	if f.github != nil {
		github = f.github
	}
	return usecase.NewPush(f.revision, f.eval, github, nil, f.tokens, f.newRegistry)
}

func (f *pushFixture) newRegistry(host, bearerToken string) (interfaces.RegistryClient, error) {
	f.factoryHost = host
	f.factoryToken = bearerToken
	return f.registry, nil
}

func genericRequest() *model.PushRequest {
	return &model.PushRequest{
		Environment: model.EnvironmentGeneric,
		Host:        "https://api.flakehub.com",
		Visibility:  model.VisibilityPublic,
		Repository:  "DeterminateSystems/flakehub-push",
		GitRoot:     ".",
		Rolling:     true,
	}
}

func TestPushExecute_Success(t *testing.T) {
	ctx := context.Background()
	f := newPushFixture(t)

	err := f.useCase().Execute(ctx, genericRequest())
	gt.NoError(t, err)

	gt.Value(t, f.registry.stagedName).Equal("DeterminateSystems/flakehub-push")
	gt.Value(t, f.registry.stagedVersion).Equal("0.1.614+rev-b2ce5fa")
	gt.Value(t, f.registry.transferURL).Equal("https://s3.example.com/upload")
	gt.Value(t, f.registry.publishedID).Equal(f.registry.result.ReleaseID)
	gt.Value(t, f.tokens.selected).Equal("generic")
	gt.Value(t, f.factoryToken).Equal("bearer-token")
	gt.Value(t, f.factoryHost).Equal("https://api.flakehub.com")

	meta := f.registry.stagedMeta
	gt.Value(t, meta.CommitCount).Equal(uint64(614))
	gt.Value(t, meta.Revision).Equal("b2ce5fa")
	gt.Value(t, meta.Repo).Equal("DeterminateSystems/flakehub-push")
	gt.Value(t, meta.Visibility).Equal(model.VisibilityPublic)
	gt.Value(t, *meta.Description).Equal("a test flake")
	gt.Value(t, *meta.Readme).Equal("# hello")
}

func TestPushExecute_TokenAcquiredAfterEvaluation(t *testing.T) {
	ctx := context.Background()
	f := newPushFixture(t)

	gt.NoError(t, f.useCase().Execute(ctx, genericRequest()))
	gt.Value(t, f.order).Equal([]string{"evaluate", "token", "stage", "transfer", "publish"})
}

func TestPushExecute_ConflictIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newPushFixture(t)
	f.registry.stageErr = goerr.New("DeterminateSystems/flakehub-push/0.1.614+rev-b2ce5fa already exists",
		goerr.T(types.ErrTagConflict))

	err := f.useCase().Execute(ctx, genericRequest())
	gt.NoError(t, err)
	gt.Number(t, f.registry.transferCalls).Equal(0)
	gt.Number(t, f.registry.publishCalls).Equal(0)
}

func TestPushExecute_ConflictFailsWhenStrict(t *testing.T) {
	ctx := context.Background()
	f := newPushFixture(t)
	f.registry.stageErr = goerr.New("DeterminateSystems/flakehub-push/0.1.614+rev-b2ce5fa already exists",
		goerr.T(types.ErrTagConflict))

	req := genericRequest()
	req.ErrorOnConflict = true
	err := f.useCase().Execute(ctx, req)
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("already exists")
	gt.Number(t, f.registry.transferCalls).Equal(0)
}

func TestPushExecute_GitHubPrefersAPICount(t *testing.T) {
	ctx := context.Background()
	f := newPushFixture(t)
	f.github = &MockGitHubClient{
		resolveFunc: func(ctx context.Context, owner, name, revision string) (*model.ForgeRepo, error) {
			gt.Value(t, owner).Equal("DeterminateSystems")
			gt.Value(t, name).Equal("flakehub-push")
			gt.Value(t, revision).Equal("b2ce5fa")
			return &model.ForgeRepo{
				CommitCount:    uint64Ptr(700),
				SPDXIdentifier: "Apache-2.0",
				Topics:         []string{"nix", "flakes"},
				Description:    "platform description",
			}, nil
		},
	}

	req := genericRequest()
	req.Environment = model.EnvironmentGitHub
	t.Setenv("GITHUB_OUTPUT", filepath.Join(t.TempDir(), "output"))

	gt.NoError(t, f.useCase().Execute(ctx, req))
	gt.Value(t, f.registry.stagedVersion).Equal("0.1.700+rev-b2ce5fa")
	gt.Value(t, f.tokens.selected).Equal("github")

	meta := f.registry.stagedMeta
	gt.Value(t, *meta.SPDXIdentifier).Equal("Apache-2.0")
	gt.Value(t, meta.Labels).Equal([]string{"flakes", "nix"})
	// The flake's own description still wins over the platform one.
	gt.Value(t, *meta.Description).Equal("a test flake")
}

func TestPushExecute_GitHubWithoutToken(t *testing.T) {
	ctx := context.Background()
	f := newPushFixture(t)

	req := genericRequest()
	req.Environment = model.EnvironmentGitHub
	err := f.useCase().Execute(ctx, req)
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("--github-token")
	gt.True(t, goerr.HasTag(err, types.ErrTagConfig))
}

func TestPushExecute_IssuerURIRejectedInCI(t *testing.T) {
	ctx := context.Background()
	f := newPushFixture(t)

	req := genericRequest()
	req.JWTIssuerURI = "http://localhost:8080"
	err := f.useCase().Execute(ctx, req)
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("--jwt-issuer-uri")
}

func TestPushExecute_LocalDevRequiresIssuer(t *testing.T) {
	ctx := context.Background()
	f := newPushFixture(t)

	req := genericRequest()
	req.Environment = model.EnvironmentLocalDev
	err := f.useCase().Execute(ctx, req)
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("--jwt-issuer-uri")
}

func TestPushExecute_ShallowCloneFails(t *testing.T) {
	ctx := context.Background()
	f := newPushFixture(t)
	f.revision.info = &model.RevisionInfo{Revision: "b2ce5fa"}

	err := f.useCase().Execute(ctx, genericRequest())
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("shallow")
	gt.True(t, goerr.HasTag(err, types.ErrTagConfig))
}

func TestPushExecute_ExplicitRevOverride(t *testing.T) {
	ctx := context.Background()
	f := newPushFixture(t)

	req := genericRequest()
	req.Rev = "deadbeef"
	gt.NoError(t, f.useCase().Execute(ctx, req))
	gt.Value(t, f.registry.stagedVersion).Equal("0.1.614+rev-deadbeef")
	gt.Value(t, f.registry.stagedMeta.Revision).Equal("deadbeef")
}

func TestPushExecute_EvaluationFailureStopsPipeline(t *testing.T) {
	ctx := context.Background()
	f := newPushFixture(t)
	f.eval.err = errors.New("flake evaluation failed")

	err := f.useCase().Execute(ctx, genericRequest())
	gt.Error(t, err)
	gt.Number(t, f.registry.transferCalls).Equal(0)
	gt.Number(t, f.registry.publishCalls).Equal(0)
}
