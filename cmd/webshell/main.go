// webshell is a terminal session over mounted storage backends: commands
// operate on a write-behind cached filesystem and persist via sync.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jcollard/webshell/internal/cachefs"
	"github.com/jcollard/webshell/internal/config"
	"github.com/jcollard/webshell/internal/logging"
	"github.com/jcollard/webshell/internal/metrics"
	"github.com/jcollard/webshell/internal/mount"
	"github.com/jcollard/webshell/internal/proc"
	"github.com/jcollard/webshell/internal/shell"
	"github.com/jcollard/webshell/internal/storage/factory"
	"github.com/jcollard/webshell/internal/storage/local"
	"github.com/jcollard/webshell/internal/storage/memory"
	"github.com/jcollard/webshell/internal/vfs"
	"github.com/jcollard/webshell/internal/watch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
	}()

	backendType, backendConfig, err := cfg.BackendConfig()
	if err != nil {
		logging.Fatal("backend config", zap.Error(err))
	}
	backend, err := factory.New(ctx, backendType, backendConfig)
	if err != nil {
		logging.Fatal("backend init failed", zap.Error(err))
	}
	defer backend.Close()

	logging.Info("webshell starting",
		zap.String("backend", backend.Type()),
		zap.String("mount", cfg.MountPath),
		zap.String("metrics", cfg.MetricsAddr))

	fs := cachefs.New(backend)
	if err := fs.Initialize(ctx); err != nil {
		logging.Fatal("cache initialize failed", zap.Error(err))
	}

	router := mount.NewRouter()
	if err := router.Mount(mount.Point{
		MountPath:   cfg.MountPath,
		Backend:     fs,
		DisplayName: cfg.MountName,
		ReadOnly:    cfg.MountReadOnly,
	}); err != nil {
		logging.Fatal("mount failed", zap.Error(err))
	}
	if cfg.ScratchPath != "" && cfg.ScratchPath != cfg.MountPath {
		if err := router.Mount(mount.Point{
			MountPath: cfg.ScratchPath,
			Backend:   cachefs.New(memory.New()),
		}); err != nil {
			logging.Fatal("scratch mount failed", zap.Error(err))
		}
	}

	reg := shell.NewRegistry()
	for _, cmd := range shell.Builtins() {
		if err := reg.Register(cmd); err != nil {
			logging.Fatal("register builtin", zap.Error(err))
		}
	}
	extras := []shell.Command{
		shell.NewSyncCommand(ctx, router),
		newEditCommand(),
		shell.Simple{CommandName: "help", Run: func(args []string, fsys vfs.FileSystem) shell.Result {
			return shell.Result{Stdout: strings.Join(reg.Names(), "  ") + "\n"}
		}},
		shell.Simple{CommandName: "exit", Run: func(args []string, fsys vfs.FileSystem) shell.Result {
			cancel()
			return shell.Result{}
		}},
	}
	for _, cmd := range extras {
		if err := reg.Register(cmd); err != nil {
			logging.Fatal("register command", zap.Error(err))
		}
	}

	output := func(text string) { fmt.Fprint(os.Stdout, text) }
	errOutput := func(text string) { fmt.Fprintln(os.Stderr, text) }

	manager := proc.NewManager(output, errOutput, nil)
	sctx := &shell.Context{FS: router, Output: output, Error: errOutput}

	// Refresh the cache when the backing directory changes on disk.
	var changes <-chan struct{}
	if lb, ok := backend.(*local.Backend); ok && cfg.WatchEnabled && lb.RootPath() != "" {
		w, err := watch.New(lb.RootPath(), time.Duration(cfg.WatchDebounceMs)*time.Millisecond)
		if err != nil {
			logging.Error("watcher init failed", zap.Error(err))
		} else {
			defer w.Close()
			changes = w.C
		}
	}

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()
	defer metricsServer.Close()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	prompt := func() {
		if manager.Current() == nil {
			fmt.Fprintf(os.Stdout, "%s $ ", router.Cwd())
		}
	}

	prompt()
	for {
		select {
		case <-ctx.Done():
			fs.Flush(ctx)
			return
		case <-changes:
			if err := fs.Refresh(ctx); err != nil {
				logging.Error("refresh failed", zap.Error(err))
			}
		case line, open := <-lines:
			if !open {
				fs.Flush(ctx)
				return
			}
			if manager.HandleInput(line) {
				prompt()
				continue
			}
			name, args := shell.ParseLine(line)
			if name == "" {
				prompt()
				continue
			}
			if p := reg.Dispatch(name, args, sctx); p != nil {
				manager.Start(p)
			}
			prompt()
		}
	}
}
