package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/planroom/internal/app"
	"github.com/vovakirdan/planroom/internal/config"
	"github.com/vovakirdan/planroom/internal/log"
)

type globalFlags struct {
	configPath string
	server     string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		logger := log.New("error")
		logger.Error().Err(err).Msg("planroom failed")
		stop()
		os.Exit(1)
	}
}

// loadApp resolves configuration with flags overriding file and env values.
func loadApp(flags *globalFlags) (*app.App, *zerolog.Logger, error) {
	bootstrap := log.New(flags.logLevel)

	cfg, path, err := config.Load(bootstrap, flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.UpdateFrom(config.Config{
		Server:   flags.server,
		LogLevel: flags.logLevel,
	})

	logger := log.New(cfg.LogLevel)
	logger.Debug().Str("config", path).Str("server", cfg.Server).Msg("configuration loaded")

	application, err := app.New(&cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return application, logger, nil
}
