package git

import (
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/m-mizutani/goerr/v2"

	"github.com/determinatesystems/flakehub-push/pkg/domain/interfaces"
	"github.com/determinatesystems/flakehub-push/pkg/domain/model"
	"github.com/determinatesystems/flakehub-push/pkg/domain/types"
)

type resolver struct{}

// NewResolver creates a RevisionResolver backed by go-git.
func NewResolver() interfaces.RevisionResolver {
	return &resolver{}
}

// Resolve opens the repository at gitRoot and resolves HEAD to a commit
// id. The commit count is derived by walking history from that id; when
// the walk fails (shallow clones are missing parent objects) the count is
// left nil and the caller must obtain one from the hosting platform.
func (r *resolver) Resolve(gitRoot string) (*model.RevisionInfo, error) {
	repo, err := git.PlainOpenWithOptions(gitRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open the git repository", goerr.V("git_root", gitRoot))
	}

	head, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read HEAD of the repository")
	}

	var hash plumbing.Hash
	switch head.Type() {
	case plumbing.SymbolicReference:
		target, err := repo.Reference(head.Target(), false)
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, goerr.New("newly initialized repository detected, at least one commit is necessary",
				goerr.T(types.ErrTagConfig))
		} else if err != nil {
			return nil, goerr.Wrap(err, "failed to resolve the HEAD target reference",
				goerr.V("target", head.Target().String()))
		}
		if target.Type() == plumbing.SymbolicReference {
			return nil, goerr.New("symbolic revision pointing to a symbolic revision is not supported at this time",
				goerr.V("target", head.Target().String()))
		}
		hash = target.Hash()
	default:
		// detached HEAD
		hash = head.Hash()
	}

	info := &model.RevisionInfo{Revision: hash.String()}
	if count, err := countCommits(repo, hash); err == nil {
		info.CommitCount = &count
	}
	return info, nil
}

func countCommits(repo *git.Repository, from plumbing.Hash) (uint64, error) {
	iter, err := repo.Log(&git.LogOptions{From: from})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var count uint64
	err = iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
