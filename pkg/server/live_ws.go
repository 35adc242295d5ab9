package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nexus-ai/nexus/pkg/core/live"
	"github.com/nexus-ai/nexus/pkg/core/voice"
)

// Client-to-server frames.
type liveClientFrame struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Final  bool            `json:"final,omitempty"`
	Voices []liveVoiceInfo `json:"voices,omitempty"`
}

// liveVoiceInfo is one synthesis voice advertised by the client.
type liveVoiceInfo struct {
	Name    string `json:"name"`
	Locale  string `json:"locale"`
	Default bool   `json:"default,omitempty"`
}

// Server-to-client frames.
type liveServerFrame struct {
	Type    string `json:"type"`
	Status  string `json:"status,omitempty"`
	Text    string `json:"text,omitempty"`
	Final   bool   `json:"final,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Voice   string `json:"voice,omitempty"`
}

// wsConn serializes writes to one websocket connection.
type wsConn struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
}

func (c *wsConn) send(frame liveServerFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.conn.WriteJSON(frame)
}

// wsCapture adapts browser-side speech recognition to the capture device
// contract. The client performs the actual capture; transcript and
// end-of-utterance frames arrive over the socket and are forwarded to the
// session handlers while armed.
type wsCapture struct {
	out *wsConn

	mu       sync.Mutex
	handlers voice.CaptureHandlers
	armed    bool
}

func (c *wsCapture) SetHandlers(h voice.CaptureHandlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
}

func (c *wsCapture) Start() error {
	c.mu.Lock()
	c.armed = true
	c.mu.Unlock()
	return c.out.send(liveServerFrame{Type: "capture_start"})
}

func (c *wsCapture) Stop() {
	c.mu.Lock()
	wasArmed := c.armed
	c.armed = false
	c.mu.Unlock()
	if wasArmed {
		_ = c.out.send(liveServerFrame{Type: "capture_stop"})
	}
}

func (c *wsCapture) deliverTranscript(text string, final bool) {
	c.mu.Lock()
	h := c.handlers
	armed := c.armed
	c.mu.Unlock()
	if armed && h.OnTranscript != nil {
		h.OnTranscript(text, final)
	}
}

func (c *wsCapture) deliverEnd() {
	c.mu.Lock()
	h := c.handlers
	armed := c.armed
	c.mu.Unlock()
	if armed && h.OnEnd != nil {
		h.OnEnd()
	}
}

// wsPlayback adapts browser-side synthesis to the playback device
// contract. Speak pushes the reply text to the client; the client reports
// back when its audio finishes. The client may advertise its voice list,
// which Speak resolves the hint against when no voice is named.
type wsPlayback struct {
	out *wsConn

	mu       sync.Mutex
	onEnd    func()
	speaking bool
	voices   []voice.Voice
}

func (p *wsPlayback) setVoices(voices []voice.Voice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.voices = voices
}

func (p *wsPlayback) SetOnEnd(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnd = fn
}

func (p *wsPlayback) Speak(text string, hint voice.VoiceHint) {
	p.mu.Lock()
	p.speaking = true
	voices := p.voices
	p.mu.Unlock()

	name := hint.Name
	if name == "" {
		if v := voice.ChooseVoice(voices, hint.Locale); v != nil {
			name = v.Name
		}
	}
	if err := p.out.send(liveServerFrame{Type: "speak", Text: text, Voice: name}); err != nil {
		// The socket is gone; resolve the utterance so the session drains.
		p.deliverEnd()
	}
}

func (p *wsPlayback) Cancel() {
	p.mu.Lock()
	wasSpeaking := p.speaking
	p.speaking = false
	p.mu.Unlock()
	if wasSpeaking {
		_ = p.out.send(liveServerFrame{Type: "cancel_speak"})
	}
}

func (p *wsPlayback) deliverEnd() {
	p.mu.Lock()
	fn := p.onEnd
	wasSpeaking := p.speaking
	p.speaking = false
	p.mu.Unlock()
	if wasSpeaking && fn != nil {
		fn()
	}
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		HandshakeTimeout: s.cfg.LiveHandshakeWait,
		CheckOrigin: func(r *http.Request) bool {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" || len(s.cfg.CORSAllowedOrigins) == 0 {
				return true
			}
			_, ok := s.cfg.CORSAllowedOrigins[origin]
			return ok
		},
	}
}

// handleLive runs one live voice session per connection. The browser owns
// the microphone and the speaker; the session machine owns the turn cycle.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("live upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	out := &wsConn{conn: conn, timeout: s.cfg.LiveWriteTimeout}
	capture := &wsCapture{out: out}
	playback := &wsPlayback{out: out}

	machine := live.NewMachine(s.gateway, capture, playback, live.Config{
		Locale:    s.cfg.VoiceLocale,
		VoiceName: s.cfg.VoiceName,
		Logger:    s.logger,
	})
	defer machine.Stop()

	stop := make(chan struct{})
	go s.pushEvents(machine, out, stop)
	defer close(stop)

	for {
		var frame liveClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("live read failed", "error", err)
			}
			return
		}

		switch frame.Type {
		case "start":
			if err := machine.Start(r.Context()); err != nil {
				_ = out.send(liveServerFrame{Type: "error", Code: "capture_unavailable", Message: err.Error()})
			}
		case "stop":
			machine.Stop()
		case "transcript":
			capture.deliverTranscript(frame.Text, frame.Final)
		case "utterance_end":
			capture.deliverEnd()
		case "playback_end":
			playback.deliverEnd()
		case "voices":
			voices := make([]voice.Voice, 0, len(frame.Voices))
			for _, v := range frame.Voices {
				voices = append(voices, voice.Voice{Name: v.Name, Locale: v.Locale, Default: v.Default})
			}
			playback.setVoices(voices)
		default:
			_ = out.send(liveServerFrame{Type: "error", Code: "bad_frame", Message: "unknown frame type: " + frame.Type})
		}
	}
}

// pushEvents forwards machine events to the client until the connection
// handler signals shutdown.
func (s *Server) pushEvents(machine *live.Machine, out *wsConn, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case ev := <-machine.Events():
			if err := out.send(frameForEvent(ev)); err != nil {
				return
			}
		}
	}
}

func frameForEvent(ev live.Event) liveServerFrame {
	switch ev := ev.(type) {
	case live.StatusChangedEvent:
		return liveServerFrame{Type: "status", Status: ev.To.String()}
	case live.TranscriptEvent:
		return liveServerFrame{Type: "transcript", Text: ev.Text, Final: ev.Final}
	case live.ReplyEvent:
		return liveServerFrame{Type: "reply", Text: ev.Text}
	case live.ErrorEvent:
		return liveServerFrame{Type: "error", Code: ev.Code, Message: ev.Message}
	default:
		return liveServerFrame{Type: "error", Code: "internal", Message: "unhandled event"}
	}
}
