package main

import (
	"fmt"
	"log/slog"

	"github.com/olanti-p/youtube-dl-project/internal/config"
	"github.com/olanti-p/youtube-dl-project/internal/fsnode"
	"github.com/olanti-p/youtube-dl-project/internal/logger"
	"github.com/olanti-p/youtube-dl-project/internal/storage"
)

// environment bundles every long-lived dependency a run needs:
// resolved paths, the two loaded config documents, and the logger
// built from the CLI's --log-file/--log-none choice.
type environment struct {
	paths  config.Paths
	server config.ServerConfig
	tool   config.ToolConfig
	log    *slog.Logger
	fs     *fsnode.Layout
}

// loadEnvironment reproduces EnvironmentManager::init_from_cli: the
// server config is loaded first (its temp_folder feeds path
// resolution), then paths, then the tool config, then the logger.
func loadEnvironment() (*environment, error) {
	devMode := cliFlags.devMode

	defaultServer := config.DefaultServerConfig(
		config.DefaultDownloadFolder(devMode),
		config.DefaultTempFolder(devMode),
	)

	// A first pass at paths, using only the default temp folder, is
	// needed to find the server config file at all; once loaded, the
	// user's real temp_folder (if different) re-resolves worker/logs
	// dirs below.
	bootPaths, err := config.Resolve(devMode, defaultServer.TempFolder)
	if err != nil {
		return nil, fmt.Errorf("resolving bootstrap paths: %w", err)
	}

	serverCfg, err := config.Load(bootPaths.ServerConfigFile, defaultServer)
	if err != nil {
		return nil, fmt.Errorf("loading server config: %w", err)
	}

	paths, err := config.Resolve(devMode, serverCfg.TempFolder)
	if err != nil {
		return nil, fmt.Errorf("resolving paths: %w", err)
	}

	toolCfg, err := config.Load(paths.ToolConfigFile, config.DefaultToolConfig())
	if err != nil {
		return nil, fmt.Errorf("loading tool config: %w", err)
	}

	log, err := logger.New(logger.Options{
		LogsDir: paths.LogsDir,
		LogFile: cliFlags.logFile,
		LogNone: cliFlags.logNone,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	return &environment{
		paths:  paths,
		server: serverCfg,
		tool:   toolCfg,
		log:    log,
		fs:     fsnode.New(paths.WorkerDir),
	}, nil
}

func openStore(env *environment) (*storage.Store, error) {
	store, err := storage.Open(env.paths.DatabaseFile, env.log)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := store.EnsureAdminUser(); err != nil {
		store.Close()
		return nil, fmt.Errorf("provisioning admin user: %w", err)
	}
	return store, nil
}
