package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nexus-ai/nexus/pkg/core/types"
)

func TestProcessForwardsPromptAndAuth(t *testing.T) {
	var gotAuth string
	var gotReq processRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/process" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "pong", "imageUrl": "https://img.example/x.png"})
	}))
	defer srv.Close()

	gw := New(srv.URL, "secret-key")
	history := []types.Message{types.NewUserMessage("ping")}
	reply, err := gw.Process(context.Background(), "ping", history)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if reply.Text != "pong" || reply.ImageURL != "https://img.example/x.png" {
		t.Fatalf("reply = %+v", reply)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotReq.Text != "ping" || len(gotReq.History) != 1 {
		t.Fatalf("upstream request = %+v", gotReq)
	}
}

func TestProcessSurfacesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "unavailable", "message": "backend down"},
		})
	}))
	defer srv.Close()

	gw := New(srv.URL, "secret-key")
	_, err := gw.Process(context.Background(), "ping", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := err.Error(); got == "" {
		t.Fatal("error should carry the upstream message")
	}
}

func TestProcessEmptyReplyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": ""})
	}))
	defer srv.Close()

	gw := New(srv.URL, "secret-key")
	if _, err := gw.Process(context.Background(), "ping", nil); err == nil {
		t.Fatal("expected an error for an empty reply")
	}
}
