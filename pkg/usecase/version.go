package usecase

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/m-mizutani/goerr/v2"

	"github.com/determinatesystems/flakehub-push/pkg/domain/types"
)

const defaultRollingPrefix = "0.1"

// ResolveVersion computes the registry-facing version string. Rolling
// releases get "{prefix}.{commitCount}+rev-{revision}" where the prefix is
// "0.{rollingMinor}" or the default "0.1"; otherwise the explicit tag is
// returned verbatim after semver validation (a leading "v" is stripped for
// validation only).
func ResolveVersion(tag string, rolling bool, rollingMinor *uint64, commitCount uint64, revision string) (string, error) {
	var prefix string
	switch {
	case rollingMinor != nil && !rolling:
		return "", goerr.New("you must enable --rolling to upload a release with a specific --rolling-minor",
			goerr.V("rolling_minor", *rollingMinor), goerr.T(types.ErrTagConfig))
	case rollingMinor != nil:
		prefix = fmt.Sprintf("0.%d", *rollingMinor)
	case rolling:
		prefix = defaultRollingPrefix
	case tag != "":
		versionOnly := strings.TrimPrefix(tag, "v")
		if _, err := semver.StrictNewVersion(versionOnly); err != nil {
			return "", goerr.Wrap(err, "failed to parse version as semver, see https://semver.org/ for specifications",
				goerr.V("tag", tag), goerr.T(types.ErrTagConfig))
		}
		return tag, nil
	default:
		return "", goerr.New("could not determine tag or rolling minor version, --tag, GITHUB_REF_NAME, or --rolling-minor must be set",
			goerr.T(types.ErrTagConfig))
	}

	return fmt.Sprintf("%s.%d+rev-%s", prefix, commitCount, revision), nil
}
