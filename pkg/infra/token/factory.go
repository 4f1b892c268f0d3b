package token

import "github.com/determinatesystems/flakehub-push/pkg/domain/interfaces"

// Factory implements interfaces.TokenSourceFactory with real providers.
type Factory struct{}

func (Factory) GitHub(host string) interfaces.TokenSource {
	return NewGitHub(host)
}

func (Factory) GitLab() interfaces.TokenSource {
	return NewGitLab()
}

func (Factory) Generic() interfaces.TokenSource {
	return NewGeneric()
}

func (Factory) LocalDev(issuerURI, owner, repository string, projectID, ownerID int64) interfaces.TokenSource {
	return NewLocalDev(issuerURI, owner, repository, projectID, ownerID)
}
