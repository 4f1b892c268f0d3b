package config

import "github.com/urfave/cli/v3"

// Registry holds registry endpoint configuration
type Registry struct {
	Host            string
	Visibility      string
	ErrorOnConflict bool
}

// Flags returns CLI flags for registry configuration
func (c *Registry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "host",
			Usage:       "The FlakeHub host to push the release to",
			Value:       "https://api.flakehub.com",
			Destination: &c.Host,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_HOST"),
		},
		&cli.StringFlag{
			Name:        "visibility",
			Usage:       "Visibility of the release (public, unlisted, private)",
			Required:    true,
			Destination: &c.Visibility,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_VISIBILITY"),
		},
		&cli.BoolFlag{
			Name:        "error-on-conflict",
			Usage:       "Fail when a release for this version already exists instead of treating it as done",
			Destination: &c.ErrorOnConflict,
			Sources:     cli.EnvVars("FLAKEHUB_PUSH_ERROR_ON_CONFLICT"),
		},
	}
}
