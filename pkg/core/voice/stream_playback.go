package voice

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamPlaybackConfig configures a WebSocket playback device.
type StreamPlaybackConfig struct {
	// URL of the streaming text-to-speech endpoint (ws:// or wss://).
	URL string

	// APIKey authenticates against the synthesis service.
	APIKey string

	// Sink receives synthesized PCM audio frames in order. Required; the
	// server shell forwards them to the listening client.
	Sink func(frame []byte)

	// HandshakeTimeout bounds the WebSocket dial. Default 10s.
	HandshakeTimeout time.Duration
}

// speakRequest is the synthesis request sent for each utterance.
type speakRequest struct {
	Type   string  `json:"type"`
	Text   string  `json:"text"`
	Voice  string  `json:"voice,omitempty"`
	Locale string  `json:"locale,omitempty"`
	Pitch  float64 `json:"pitch"`
	Rate   float64 `json:"rate"`
}

type playbackEvent struct {
	Type  string `json:"type"` // "done", "error"
	Error string `json:"error"`
}

// StreamPlayback is a PlaybackDevice backed by a streaming synthesis
// service. Each Speak call opens one synthesis stream; audio frames flow to
// the configured sink and the end handler fires when the utterance
// completes. Cancel tears the stream down without firing the end handler.
type StreamPlayback struct {
	cfg StreamPlaybackConfig

	mu    sync.Mutex
	conn  *websocket.Conn
	onEnd func()
	gen   int
}

// NewStreamPlayback creates a playback device.
func NewStreamPlayback(cfg StreamPlaybackConfig) *StreamPlayback {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &StreamPlayback{cfg: cfg}
}

// SetOnEnd installs the utterance-finished handler.
func (p *StreamPlayback) SetOnEnd(fn func()) {
	p.mu.Lock()
	p.onEnd = fn
	p.mu.Unlock()
}

// Speak synthesizes and streams one utterance. A previous utterance still
// in flight is cancelled first, so at most one stream is ever active.
func (p *StreamPlayback) Speak(text string, hint VoiceHint) {
	p.Cancel()

	headers := http.Header{}
	if p.cfg.APIKey != "" {
		headers.Set("X-API-Key", p.cfg.APIKey)
	}
	dialer := websocket.Dialer{HandshakeTimeout: p.cfg.HandshakeTimeout}
	conn, resp, err := dialer.Dial(p.cfg.URL, headers)
	if err != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		// An unreachable synthesis service behaves like an instantly
		// finished utterance so the session is never stranded speaking.
		p.fireEnd(p.currentGen())
		return
	}

	req := speakRequest{
		Type:   "speak",
		Text:   text,
		Voice:  hint.Name,
		Locale: hint.Locale,
		Pitch:  hint.Pitch,
		Rate:   hint.Rate,
	}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		p.fireEnd(p.currentGen())
		return
	}

	p.mu.Lock()
	p.conn = conn
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	go p.readLoop(conn, gen)
}

// Cancel silences playback immediately. Idempotent; the end handler does
// not fire for a cancelled utterance.
func (p *StreamPlayback) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return
	}
	p.gen++
	p.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	p.conn.Close()
	p.conn = nil
}

func (p *StreamPlayback) currentGen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

func (p *StreamPlayback) readLoop(conn *websocket.Conn, gen int) {
	defer conn.Close()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if p.isCurrent(gen) && p.cfg.Sink != nil {
				p.cfg.Sink(data)
			}
		case websocket.TextMessage:
			var ev playbackEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			if ev.Type == "done" || ev.Type == "error" {
				p.finish(gen)
				return
			}
		}
	}
}

func (p *StreamPlayback) isCurrent(gen int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return gen == p.gen && p.conn != nil
}

// finish clears the connection if this stream is still current, then fires
// the end handler.
func (p *StreamPlayback) finish(gen int) {
	p.mu.Lock()
	if gen != p.gen || p.conn == nil {
		p.mu.Unlock()
		return
	}
	p.conn = nil
	fn := p.onEnd
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *StreamPlayback) fireEnd(gen int) {
	p.mu.Lock()
	fn := p.onEnd
	stale := gen != p.gen
	p.mu.Unlock()
	if !stale && fn != nil {
		fn()
	}
}
