package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/determinatesystems/flakehub-push/pkg/cli/config"
	"github.com/determinatesystems/flakehub-push/pkg/domain/model"
)

func TestSourceBackfill(t *testing.T) {
	ctx := context.Background()

	t.Run("github env fills repository and git root", func(t *testing.T) {
		t.Setenv("GITHUB_REPOSITORY", "DeterminateSystems/flakehub-push")
		t.Setenv("GITHUB_WORKSPACE", "/workspace")

		cfg := &config.Source{}
		cfg.Backfill(ctx, model.EnvironmentGitHub)
		gt.Value(t, cfg.Repository).Equal("DeterminateSystems/flakehub-push")
		gt.Value(t, cfg.GitRoot).Equal("/workspace")
	})

	t.Run("gitlab env fills repository and git root", func(t *testing.T) {
		t.Setenv("CI_PROJECT_PATH", "group/subgroup/flake")
		t.Setenv("CI_PROJECT_DIR", "/builds/group/flake")

		cfg := &config.Source{}
		cfg.Backfill(ctx, model.EnvironmentGitLab)
		gt.Value(t, cfg.Repository).Equal("group/subgroup/flake")
		gt.Value(t, cfg.GitRoot).Equal("/builds/group/flake")
	})

	t.Run("explicit values win over the environment", func(t *testing.T) {
		t.Setenv("GITHUB_REPOSITORY", "from/env")
		t.Setenv("GITHUB_WORKSPACE", "/from-env")

		cfg := &config.Source{Repository: "explicit/repo", GitRoot: "/explicit"}
		cfg.Backfill(ctx, model.EnvironmentGitHub)
		gt.Value(t, cfg.Repository).Equal("explicit/repo")
		gt.Value(t, cfg.GitRoot).Equal("/explicit")
	})

	t.Run("git root falls back to the working directory", func(t *testing.T) {
		cfg := &config.Source{}
		cfg.Backfill(ctx, model.EnvironmentLocalDev)

		wd, err := os.Getwd()
		gt.NoError(t, err)
		gt.Value(t, cfg.GitRoot).Equal(wd)
	})
}
