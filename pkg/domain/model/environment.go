package model

import "os"

// ExecutionEnvironment identifies which CI platform (or lack thereof) is
// hosting the current run. It is determined once per invocation and decides
// how credentials are acquired and which env vars backfill the configuration.
type ExecutionEnvironment int

const (
	// EnvironmentLocalDev is the fallback when no CI markers are present.
	// It is only usable together with --jwt-issuer-uri against a mock issuer.
	EnvironmentLocalDev ExecutionEnvironment = iota
	EnvironmentGitHub
	EnvironmentGitLab
	EnvironmentGeneric
)

func (e ExecutionEnvironment) String() string {
	switch e {
	case EnvironmentGitHub:
		return "github"
	case EnvironmentGitLab:
		return "gitlab"
	case EnvironmentGeneric:
		return "generic"
	default:
		return "local"
	}
}

// ClassifyEnvironment inspects process environment markers and picks exactly
// one environment. First match wins in the order GitHub, GitLab, Generic;
// ambiguous combinations (e.g. both GITHUB_ACTIONS and GITLAB_CI set) are not
// resolved beyond that ordering. No network I/O happens here.
func ClassifyEnvironment() ExecutionEnvironment {
	if _, ok := os.LookupEnv("GITHUB_ACTIONS"); ok {
		return EnvironmentGitHub
	}
	if _, ok := os.LookupEnv("GITLAB_CI"); ok {
		return EnvironmentGitLab
	}
	if _, ok := os.LookupEnv("FLAKEHUB_PUSH_OIDC_TOKEN"); ok {
		return EnvironmentGeneric
	}
	return EnvironmentLocalDev
}
