// Command nexusd runs the Nexus assistant server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nexus-ai/nexus/internal/dotenv"
	"github.com/nexus-ai/nexus/internal/keystore"
	"github.com/nexus-ai/nexus/pkg/core"
	"github.com/nexus-ai/nexus/pkg/core/providers/gemini"
	"github.com/nexus-ai/nexus/pkg/core/providers/openai"
	"github.com/nexus-ai/nexus/pkg/core/providers/remote"
	"github.com/nexus-ai/nexus/pkg/server"
)

type serverDeps struct {
	loadConfig   func() (server.Config, error)
	newGateway   func(context.Context, server.Config, string) (core.Gateway, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultServerDeps() serverDeps {
	return serverDeps{
		loadConfig:   server.LoadFromEnv,
		newGateway:   buildGateway,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) { signal.Notify(c, sig...) },
		signalStop:   signal.Stop,
	}
}

// buildGateway registers every provider constructible from the config and
// resolves the configured one by name.
func buildGateway(ctx context.Context, cfg server.Config, apiKey string) (core.Gateway, error) {
	reg, err := buildRegistry(ctx, cfg, apiKey)
	if err != nil {
		return nil, err
	}
	gw, ok := reg.Get(cfg.Gateway)
	if !ok {
		return nil, fmt.Errorf("unknown gateway %q (available: %s)", cfg.Gateway, strings.Join(reg.List(), ", "))
	}
	return gw, nil
}

func buildRegistry(ctx context.Context, cfg server.Config, apiKey string) (core.GatewayRegistry, error) {
	reg := core.NewGatewayRegistry()
	reg.Register(openai.New(apiKey, openai.WithModel(cfg.Model)))
	if cfg.RemoteBaseURL != "" {
		reg.Register(remote.New(cfg.RemoteBaseURL, apiKey))
	}
	if g, err := gemini.New(ctx, apiKey, gemini.WithModel(cfg.Model)); err == nil {
		reg.Register(g)
	} else if cfg.Gateway == "gemini" {
		return nil, fmt.Errorf("build gemini gateway: %w", err)
	}
	return reg, nil
}

// resolveKey prefers the environment-configured key, falling back to the
// persisted key slot. A key later delivered over the one-shot URL replaces
// the slot contents.
func resolveKey(cfg server.Config, keys *keystore.Store) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	return keys.Load()
}

func buildHTTPServer(cfg server.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runServer(ctx context.Context, logger *slog.Logger, deps serverDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.newGateway == nil {
		return errors.New("missing newGateway dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	keys := keystore.New(cfg.DataDir)
	apiKey, err := resolveKey(cfg, keys)
	if err != nil {
		return fmt.Errorf("resolve api key: %w", err)
	}

	gateway, err := deps.newGateway(ctx, cfg, apiKey)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	srv := server.New(cfg, logger, gateway, keys)
	httpSrv := buildHTTPServer(cfg, srv.Handler())

	logger.Info("starting nexus", "addr", cfg.Addr, "gateway", gateway.Name())

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("nexus stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps serverDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}

	if err := dotenv.Load(); err != nil {
		fmt.Fprintf(stderr, "nexusd: %v\n", err)
		return 1
	}

	cfg, err := server.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "nexusd: %v\n", err)
		return 1
	}
	logger, cleanup := server.NewLogger(cfg)
	defer cleanup()

	if err := runServer(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "nexusd: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultServerDeps()))
}
