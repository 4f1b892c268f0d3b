package usecase

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/m-mizutani/goerr/v2"

	"github.com/determinatesystems/flakehub-push/pkg/domain/model"
	"github.com/determinatesystems/flakehub-push/pkg/domain/types"
)

// ResolveNames derives the registry upload name and (owner, project) pair
// from a repository identifier like "owner/repo" or, when subgroup
// flattening is enabled, "owner/subgroup/.../repo" (flattened to
// "owner/subgroup-...-repo"). An explicitly provided name overrides the
// derived upload name after validation.
func ResolveNames(explicitName, repository string, flattenSubgroups bool) (*model.ReleaseIdentity, error) {
	formatErr := func() error {
		example := "`determinatesystems/flakehub-push`"
		if flattenSubgroups {
			example += " or `determinatesystems/subgroup-segments.../flakehub-push`"
		}
		return goerr.New(
			fmt.Sprintf("could not determine project owner and name; pass --repository formatted like %s", example),
			goerr.V("repository", repository),
			goerr.T(types.ErrTagConfig),
		)
	}

	segments := strings.Split(repository, "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return nil, formatErr()
	}
	if !flattenSubgroups && len(segments) > 2 {
		return nil, formatErr()
	}

	owner := segments[0]
	projectName := strings.Join(segments[1:], "-")

	uploadName := owner + "/" + projectName
	if explicitName != "" {
		if err := validateUploadName(explicitName); err != nil {
			return nil, err
		}
		uploadName = explicitName
	}

	return &model.ReleaseIdentity{
		UploadName:   uploadName,
		ProjectOwner: owner,
		ProjectName:  projectName,
	}, nil
}

func validateUploadName(name string) error {
	valid := strings.Count(name, "/") == 1
	for _, r := range name {
		if r > unicode.MaxASCII || unicode.IsSpace(r) {
			valid = false
			break
		}
	}
	if !valid {
		return goerr.New(
			"the argument --name must be in the format of `owner-name/flake-name` and cannot contain whitespace or other special characters",
			goerr.V("name", name),
			goerr.T(types.ErrTagConfig),
		)
	}
	return nil
}
