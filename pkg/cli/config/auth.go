package config

import "github.com/urfave/cli/v3"

// Auth holds credential-related configuration. The bearer token for the
// registry itself is never configured directly; it is acquired per
// execution environment right before the publish protocol starts.
type Auth struct {
	GitHubToken  string
	JWTIssuerURI string
}

// Flags returns CLI flags for auth configuration
func (c *Auth) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub token for read-only repository queries",
			Destination: &c.GitHubToken,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_GITHUB_TOKEN", "GITHUB_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "jwt-issuer-uri",
			Usage:       "Development token issuer URL (local development only, invalid in CI)",
			Destination: &c.JWTIssuerURI,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_JWT_ISSUER_URI"),
		},
	}
}
