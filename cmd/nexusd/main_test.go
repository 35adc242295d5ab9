package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/nexus-ai/nexus/internal/keystore"
	"github.com/nexus-ai/nexus/pkg/core"
	"github.com/nexus-ai/nexus/pkg/server"
)

func TestRunMain_ReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	t.Setenv("NEXUS_GATEWAY", "carrier-pigeon")

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, serverDeps{
		loadConfig:   server.LoadFromEnv,
		newGateway:   buildGateway,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if got := stderr.String(); got == "" {
		t.Fatalf("expected stderr output for startup error")
	}
}

func TestRunServer_FailsWhenGatewayBuildFails(t *testing.T) {
	t.Parallel()

	err := runServer(context.Background(), nil, serverDeps{
		loadConfig: func() (server.Config, error) {
			cfg := server.Config{
				Addr:                "127.0.0.1:0",
				Gateway:             "gemini",
				DataDir:             t.TempDir(),
				CORSAllowedOrigins:  map[string]struct{}{},
				LiveWriteTimeout:    time.Second,
				ShutdownGracePeriod: time.Second,
			}
			return cfg, nil
		},
		newGateway: func(ctx context.Context, cfg server.Config, apiKey string) (core.Gateway, error) {
			return nil, errors.New("no credentials")
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})
	if err == nil {
		t.Fatal("expected an error when the gateway cannot be built")
	}
}

func TestBuildHTTPServer_UsesConfiguredAddress(t *testing.T) {
	t.Parallel()

	cfg := server.Config{
		Addr:              "127.0.0.1:9999",
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       3 * time.Second,
	}

	srv := buildHTTPServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr=%q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout {
		t.Fatalf("ReadHeaderTimeout=%v, want %v", srv.ReadHeaderTimeout, cfg.ReadHeaderTimeout)
	}
	if srv.ReadTimeout != cfg.ReadTimeout {
		t.Fatalf("ReadTimeout=%v, want %v", srv.ReadTimeout, cfg.ReadTimeout)
	}
}

func TestResolveKey_PrefersEnvOverSlot(t *testing.T) {
	t.Parallel()

	keys := keystore.New(t.TempDir())
	if err := keys.Save("slot-key"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := resolveKey(server.Config{APIKey: "env-key"}, keys)
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	if got != "env-key" {
		t.Fatalf("key = %q, want env-key", got)
	}

	got, err = resolveKey(server.Config{}, keys)
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	if got != "slot-key" {
		t.Fatalf("key = %q, want slot-key", got)
	}
}

func TestBuildGateway_KnownProviders(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"gemini", "openai", "remote"} {
		cfg := server.Config{Gateway: name, RemoteBaseURL: "https://upstream.example"}
		gw, err := buildGateway(context.Background(), cfg, "test-key")
		if err != nil {
			t.Fatalf("buildGateway(%s): %v", name, err)
		}
		if gw.Name() != name {
			t.Fatalf("gateway name = %q, want %q", gw.Name(), name)
		}
	}
}

func TestBuildRegistry_RemoteRequiresBaseURL(t *testing.T) {
	t.Parallel()

	reg, err := buildRegistry(context.Background(), server.Config{Gateway: "openai"}, "test-key")
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}
	if _, ok := reg.Get("remote"); ok {
		t.Fatal("remote must not be registered without a base URL")
	}
	if _, ok := reg.Get("openai"); !ok {
		t.Fatal("openai should always be registered")
	}
}

func TestBuildGateway_UnconstructibleSelectionFails(t *testing.T) {
	t.Parallel()

	_, err := buildGateway(context.Background(), server.Config{Gateway: "remote"}, "test-key")
	if err == nil {
		t.Fatal("selecting remote without a base URL must fail")
	}
}
