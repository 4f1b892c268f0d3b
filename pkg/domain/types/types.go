package types

import "github.com/m-mizutani/goerr/v2"

// Version is the application version, overridden at build time via -ldflags
var Version = "dev"

// Error tags classify failures so the CLI layer can decide how to surface
// them (exit code, CI annotation, remediation hint).
var (
	// ErrTagConfig marks a missing or malformed input, secret, or flag.
	// Messages carrying this tag must include a remediation hint.
	ErrTagConfig = goerr.NewTag("config")

	// ErrTagUnauthorized marks a bearer credential rejected by the registry.
	ErrTagUnauthorized = goerr.NewTag("unauthorized")

	// ErrTagConflict marks a release that already exists for this
	// name/version. Fatal only when --error-on-conflict is set.
	ErrTagConflict = goerr.NewTag("conflict")

	// ErrTagBadRequest marks a payload the registry rejected.
	ErrTagBadRequest = goerr.NewTag("bad_request")
)
