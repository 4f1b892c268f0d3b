package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/determinatesystems/flakehub-push/pkg/cli/config"
	"github.com/determinatesystems/flakehub-push/pkg/domain/types"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	var (
		loggerCfg   config.Logger
		registryCfg config.Registry
		sourceCfg   config.Source
		releaseCfg  config.Release
		authCfg     config.Auth
	)
	var logger *slog.Logger

	flags := loggerCfg.Flags()
	flags = append(flags, registryCfg.Flags()...)
	flags = append(flags, sourceCfg.Flags()...)
	flags = append(flags, releaseCfg.Flags()...)
	flags = append(flags, authCfg.Flags()...)

	app := &cli.Command{
		Name:    "flakehub-push",
		Usage:   "Package a flake and publish a signed, versioned release to FlakeHub",
		Version: types.Version,
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}

			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)
			return ctx, nil
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runPush(ctx, &registryCfg, &sourceCfg, &releaseCfg, &authCfg)
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("push failed", slog.Any("error", err))
		return err
	}

	return nil
}
