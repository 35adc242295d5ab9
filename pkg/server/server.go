// Package server exposes the Nexus core over HTTP: chat thread CRUD and
// sends under /v1/chat, a live voice WebSocket under /v1/live, and a
// one-shot prompt path at the root mirroring URL-delivered activation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nexus-ai/nexus/internal/keystore"
	"github.com/nexus-ai/nexus/pkg/core"
	"github.com/nexus-ai/nexus/pkg/core/chat"
	"github.com/nexus-ai/nexus/pkg/core/providers"
	"github.com/nexus-ai/nexus/pkg/core/types"
)

// Server wires the chat store, the gateway and the key slot behind one
// handler.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	mux     *http.ServeMux
	chat    *chat.Store
	gateway core.Gateway
	keys    *keystore.Store
}

// New creates a server around an already-constructed gateway.
func New(cfg Config, logger *slog.Logger, gateway core.Gateway, keys *keystore.Store) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		mux:     http.NewServeMux(),
		chat:    chat.NewStore(gateway, chat.WithLogger(logger)),
		gateway: gateway,
		keys:    keys,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleOneShot)

	s.mux.HandleFunc("GET /v1/chat/threads", s.handleListThreads)
	s.mux.HandleFunc("POST /v1/chat/threads", s.handleCreateThread)
	s.mux.HandleFunc("GET /v1/chat/threads/{id}", s.handleGetThread)
	s.mux.HandleFunc("DELETE /v1/chat/threads/{id}", s.handleDeleteThread)
	s.mux.HandleFunc("POST /v1/chat/threads/{id}/select", s.handleSelectThread)
	s.mux.HandleFunc("POST /v1/chat/threads/{id}/messages", s.handleSendMessage)

	s.mux.HandleFunc("POST /v1/apikey", s.handleGenerateKey)
	s.mux.HandleFunc("DELETE /v1/apikey", s.handleClearKey)

	s.mux.HandleFunc("GET /v1/live", s.handleLive)
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = CORS(s.cfg, h)
	h = Recover(s.logger, h)
	h = AccessLog(s.logger, h)
	h = RequestID(h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleOneShot implements the URL-delivered prompt path: a prompt query
// parameter (prompt or q) is answered immediately without touching any
// chat thread. The request must present the deployment's stored key; keys
// enter the slot only through POST /v1/apikey, never through this path.
func (s *Server) handleOneShot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	prompt := strings.TrimSpace(q.Get("prompt"))
	if prompt == "" {
		prompt = strings.TrimSpace(q.Get("q"))
	}
	if prompt == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ready",
			"headlines": providers.Headlines(),
		})
		return
	}

	key := strings.TrimSpace(q.Get("key"))
	if key == "" {
		writeJSONError(w, core.NewAuthenticationError("missing api key"))
		return
	}
	if !core.ValidKeyShape(key) {
		writeJSONError(w, core.NewAuthenticationError("invalid api key"))
		return
	}
	stored, err := s.keys.Load()
	if err != nil {
		s.logger.Error("load api key", "error", err)
		writeJSONError(w, core.NewAPIError("could not read api key slot"))
		return
	}
	// An empty slot authorizes nothing; shape alone never does.
	if stored == "" || key != stored {
		writeJSONError(w, core.NewAuthenticationError("unrecognized api key"))
		return
	}

	reply, err := s.gateway.Process(r.Context(), prompt, nil)
	if err != nil {
		// One-shot prompts surface the same fixed apology the chat path does.
		writeJSON(w, http.StatusOK, core.Reply{Text: core.ChatApology})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// handleGenerateKey mints a fresh key and persists it as the deployment's
// one key slot, replacing whatever was there. The key is returned exactly
// once; it is not recoverable later.
func (s *Server) handleGenerateKey(w http.ResponseWriter, r *http.Request) {
	key := core.GenerateAPIKey()
	if err := s.keys.Save(key); err != nil {
		s.logger.Error("persist api key", "error", err)
		writeJSONError(w, core.NewAPIError("could not persist api key"))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

// handleClearKey empties the key slot, revoking URL-delivered prompts
// until a new key is generated.
func (s *Server) handleClearKey(w http.ResponseWriter, r *http.Request) {
	if err := s.keys.Clear(); err != nil {
		s.logger.Error("clear api key", "error", err)
		writeJSONError(w, core.NewAPIError("could not clear api key"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type threadsResponse struct {
	Threads  []types.Conversation `json:"threads"`
	ActiveID string               `json:"activeId,omitempty"`
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	resp := threadsResponse{Threads: s.chat.Threads()}
	if active, ok := s.chat.ActiveThread(); ok {
		resp.ActiveID = active.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, s.chat.CreateThread())
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.chat.Thread(r.PathValue("id"))
	if !ok {
		writeJSONError(w, core.NewNotFoundError("no such thread"))
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	s.chat.DeleteThread(r.PathValue("id"))
	resp := threadsResponse{Threads: s.chat.Threads()}
	if active, ok := s.chat.ActiveThread(); ok {
		resp.ActiveID = active.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSelectThread(w http.ResponseWriter, r *http.Request) {
	if err := s.chat.SelectThread(r.PathValue("id")); err != nil {
		var coreErr *core.Error
		if errors.As(err, &coreErr) {
			writeJSONError(w, coreErr)
			return
		}
		writeJSONError(w, core.NewAPIError(err.Error()))
		return
	}
	conv, _ := s.chat.ActiveThread()
	writeJSON(w, http.StatusOK, conv)
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, core.NewInvalidRequestError("invalid json body"))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSONError(w, core.NewInvalidRequestError("text must not be empty"))
		return
	}

	id := r.PathValue("id")
	done, err := s.chat.SendUserText(r.Context(), id, req.Text)
	if err != nil {
		var coreErr *core.Error
		if errors.As(err, &coreErr) {
			writeJSONError(w, coreErr)
			return
		}
		writeJSONError(w, core.NewAPIError(err.Error()))
		return
	}

	// Hold the request open until the assistant (or apology) message lands,
	// then return the full updated thread.
	select {
	case <-done:
	case <-r.Context().Done():
		writeJSONError(w, core.NewAPIError(context.Cause(r.Context()).Error()))
		return
	}

	conv, ok := s.chat.Thread(id)
	if !ok {
		writeJSONError(w, core.NewNotFoundError("no such thread"))
		return
	}
	writeJSON(w, http.StatusOK, conv)
}
