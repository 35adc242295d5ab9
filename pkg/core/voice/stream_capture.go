package voice

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamCaptureConfig configures a WebSocket capture device.
type StreamCaptureConfig struct {
	// URL of the streaming speech-to-text endpoint (ws:// or wss://).
	URL string

	// APIKey authenticates against the transcription service.
	APIKey string

	// Language is the ISO language code. Default "en".
	Language string

	// SampleRate of the PCM audio pushed via SendAudio. Default 16000.
	SampleRate int

	// HandshakeTimeout bounds the WebSocket dial. Default 10s.
	HandshakeTimeout time.Duration
}

// StreamCapture is a CaptureDevice backed by a streaming transcription
// service over WebSocket. Audio is pushed in with SendAudio; transcript and
// end-of-utterance events come back on the configured handlers.
//
// Start and Stop are idempotent, matching the CaptureDevice contract.
type StreamCapture struct {
	cfg StreamCaptureConfig

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers CaptureHandlers
	started  bool
	gen      int

	writeMu sync.Mutex
}

// NewStreamCapture creates a capture device. The connection is not dialed
// until Start.
func NewStreamCapture(cfg StreamCaptureConfig) *StreamCapture {
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &StreamCapture{cfg: cfg}
}

// SetHandlers installs the event handlers. Must be called before Start.
func (c *StreamCapture) SetHandlers(h CaptureHandlers) {
	c.mu.Lock()
	c.handlers = h
	c.mu.Unlock()
}

// Start dials the transcription endpoint and begins delivering events.
// Starting an already-started device is a no-op.
func (c *StreamCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("capture url: %w", err)
	}
	q := u.Query()
	q.Set("language", c.cfg.Language)
	q.Set("sample_rate", fmt.Sprintf("%d", c.cfg.SampleRate))
	q.Set("encoding", "pcm_s16le")
	u.RawQuery = q.Encode()

	headers := http.Header{}
	if c.cfg.APIKey != "" {
		headers.Set("X-API-Key", c.cfg.APIKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, resp, err := dialer.Dial(u.String(), headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if len(body) > 0 {
				return fmt.Errorf("capture connect (status %d): %s", resp.StatusCode, string(body))
			}
		}
		return fmt.Errorf("capture connect: %w", err)
	}

	c.conn = conn
	c.started = true
	c.gen++
	go c.readLoop(conn, c.gen)
	return nil
}

// Stop closes the transcription stream. Stopping a stopped device is a
// no-op; pending events from the closed stream are discarded.
func (c *StreamCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.started = false
	c.gen++
	conn := c.conn
	c.conn = nil

	c.writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	conn.Close()
}

// SendAudio pushes a chunk of PCM audio into the transcription stream.
// Sending to a stopped device is a no-op.
func (c *StreamCapture) SendAudio(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	started := c.started
	c.mu.Unlock()
	if !started || conn == nil {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

type captureEvent struct {
	Type    string `json:"type"` // "transcript", "end", "error"
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
	Error   string `json:"error"`
}

func (c *StreamCapture) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// A read error after Stop is the expected shutdown path.
			c.deliverEnd(gen)
			return
		}

		var ev captureEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "transcript":
			c.deliverTranscript(gen, ev.Text, ev.IsFinal)
		case "end":
			c.deliverEnd(gen)
		case "error":
			c.deliverEnd(gen)
			return
		}
	}
}

func (c *StreamCapture) deliverTranscript(gen int, text string, final bool) {
	c.mu.Lock()
	fn := c.handlers.OnTranscript
	live := c.started && gen == c.gen
	c.mu.Unlock()
	if live && fn != nil {
		fn(text, final)
	}
}

func (c *StreamCapture) deliverEnd(gen int) {
	c.mu.Lock()
	fn := c.handlers.OnEnd
	live := c.started && gen == c.gen
	c.mu.Unlock()
	if live && fn != nil {
		fn()
	}
}
