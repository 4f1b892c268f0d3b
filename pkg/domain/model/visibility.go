package model

import (
	"github.com/m-mizutani/goerr/v2"

	"github.com/determinatesystems/flakehub-push/pkg/domain/types"
)

// Visibility controls who can see a published release on the registry.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

// ParseVisibility parses a user-supplied visibility string. "hidden" is a
// backwards-compatible alias of "unlisted".
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "public":
		return VisibilityPublic, nil
	case "unlisted", "hidden":
		return VisibilityUnlisted, nil
	case "private":
		return VisibilityPrivate, nil
	default:
		return "", goerr.New("invalid visibility, expected one of public, unlisted, private",
			goerr.V("visibility", s), goerr.T(types.ErrTagConfig))
	}
}
