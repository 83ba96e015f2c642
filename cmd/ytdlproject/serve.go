package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/olanti-p/youtube-dl-project/internal/announce"
	"github.com/olanti-p/youtube-dl-project/internal/api"
	"github.com/olanti-p/youtube-dl-project/internal/config"
	"github.com/olanti-p/youtube-dl-project/internal/downloadmgr"
	"github.com/olanti-p/youtube-dl-project/internal/fsnode"
	"github.com/olanti-p/youtube-dl-project/internal/jobmanager"
	"github.com/olanti-p/youtube-dl-project/internal/procworker"
	"github.com/olanti-p/youtube-dl-project/internal/security"
	"github.com/olanti-p/youtube-dl-project/internal/task"
)

const serverAddr = ":8080"

// serveOnce wires every component together and runs the server until
// an OS signal, an externally-requested stop (externalStop, used by
// the Windows service handler), or a config-apply request shuts it
// down: build filesystem/db/job-manager, mount routes, serve, then
// cancel the job manager and wait for it to drain before returning.
//
// It returns the config that a POST /api/config requested be applied,
// if any, so the caller (runServerLoop) can rebuild the environment
// and serve again.
func serveOnce(env *environment, externalStop <-chan struct{}) (*config.ServerConfig, error) {
	env.log.Info("current env", "dev_mode", cliFlags.devMode, "worker_dir", env.paths.WorkerDir, "database", env.paths.DatabaseFile)

	if err := env.fs.PrepareRoot(); err != nil {
		return nil, fmt.Errorf("initializing directories: %w", err)
	}
	if err := fsnode.EnsureDir(env.paths.LogsDir); err != nil {
		return nil, fmt.Errorf("initializing logs directory: %w", err)
	}

	store, err := openStore(env)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if n, err := store.ReconcileOnStartup(); err != nil {
		return nil, fmt.Errorf("reconciling startup state: %w", err)
	} else if n > 0 {
		env.log.Warn("reconciled stale task state from a previous crash", "count", n)
	}

	audit := security.NewAuditLogger(env.paths.LogsDir, env.log)
	defer audit.Close()

	procWorker := procworker.New(env.log)
	runner := task.NewRunner(downloaderBinaryName(), env.tool, env.fs, procWorker, env.log)
	pool := downloadmgr.New(int(env.server.NumDownloadWorkers), runner, env.fs, env.log)
	ann := announce.New(env.server.ShowAnnouncements, store)

	outputDir := env.server.DownloadFolder
	jobs := jobmanager.New(store, pool, ann, func() string { return outputDir }, env.log)

	cfgMgr := newConfigManager(env.server, env.paths.ServerConfigFile)

	jmCtx, cancelJM := context.WithCancel(context.Background())
	defer cancelJM()
	jmDone := make(chan error, 1)
	go func() { jmDone <- jobs.Run(jmCtx) }()

	stopRequested := make(chan struct{})
	stopOnce := sync.OnceFunc(func() { close(stopRequested) })

	srv := api.New(jobs, store, cfgMgr, env.tool, env.fs, audit, env.log, stopOnce)

	mux := staticAndAPIHandler(srv, "webui")
	httpServer := &http.Server{Addr: serverAddr, Handler: mux}

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
			return
		}
		serveErrCh <- nil
	}()
	env.log.Info("listening", "addr", serverAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		env.log.Info("received OS signal, shutting down")
	case <-stopRequested:
		env.log.Info("shutdown requested over HTTP")
	case <-externalStop:
		env.log.Info("shutdown requested by service controller")
	case err := <-serveErrCh:
		if err != nil {
			env.log.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	jobs.GetStopHandle().Stop()
	if err := <-jmDone; err != nil && !errors.Is(err, context.Canceled) {
		env.log.Error("job manager exited with error", "error", err)
	}

	if next, ok := cfgMgr.takePendingReload(); ok {
		return &next, nil
	}
	return nil, nil
}

// staticAndAPIHandler routes "/api/..." to the chi router and
// everything else to a static file server rooted at webUIDir.
func staticAndAPIHandler(srv *api.Server, webUIDir string) http.Handler {
	static := http.FileServer(http.Dir(webUIDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			srv.Router().ServeHTTP(w, r)
			return
		}
		static.ServeHTTP(w, r)
	})
}
