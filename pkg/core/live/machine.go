package live

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/nexus-ai/nexus/pkg/core"
	"github.com/nexus-ai/nexus/pkg/core/voice"
)

// Config holds the tunable parts of a voice session.
type Config struct {
	// Locale steers playback voice selection. Default "en-US".
	Locale string

	// VoiceName optionally names a preferred synthesis voice.
	VoiceName string

	// Logger receives session diagnostics. Nil falls back to slog.Default.
	Logger *slog.Logger
}

// Machine drives one live voice session through standby, listening,
// processing and speaking. It mediates exactly one in-flight gateway call
// and guarantees capture and playback are never simultaneously active.
//
// All transitions run under one mutex; device and gateway calls happen
// outside it. Deactivation is cooperative: Stop flips the active flag and
// bumps a generation counter that every asynchronous resumption point
// checks before re-arming a device.
type Machine struct {
	gateway  core.Gateway
	capture  voice.CaptureDevice
	playback voice.PlaybackDevice
	cfg      Config
	logger   *slog.Logger

	mu         sync.Mutex
	status     Status
	active     bool
	transcript string
	lastReply  string
	gen        int
	ctx        context.Context

	events chan Event
}

// NewMachine wires a session machine to its devices and gateway. The
// machine starts in standby with the session inactive.
func NewMachine(gateway core.Gateway, capture voice.CaptureDevice, playback voice.PlaybackDevice, cfg Config) *Machine {
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	m := &Machine{
		gateway:  gateway,
		capture:  capture,
		playback: playback,
		cfg:      cfg,
		logger:   cfg.Logger,
		status:   StatusStandby,
		ctx:      context.Background(),
		events:   make(chan Event, 64),
	}
	capture.SetHandlers(voice.CaptureHandlers{
		OnTranscript: m.onTranscript,
		OnEnd:        m.onUtteranceEnd,
	})
	playback.SetOnEnd(m.onPlaybackEnd)
	return m
}

// Events returns the observer channel.
func (m *Machine) Events() <-chan Event {
	return m.events
}

// Status returns the current sub-phase.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Active reports whether the user has opted into a continuous session.
func (m *Machine) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Transcript returns the in-progress or just-finalized recognized text.
func (m *Machine) Transcript() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transcript
}

// LastReply returns the most recent assistant reply text.
func (m *Machine) LastReply() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReply
}

// Start activates the session and arms the capture device. If the device
// cannot start, the error is returned synchronously and the machine stays
// in standby with the session inactive. Starting an active session is a
// no-op.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return nil
	}
	m.ctx = ctx
	m.mu.Unlock()

	// Silence any leftover playback before arming capture.
	m.playback.Cancel()

	if err := m.capture.Start(); err != nil {
		m.logger.Warn("capture device unavailable", "error", err)
		return core.NewUnavailableError("capture device unavailable: " + err.Error())
	}

	m.mu.Lock()
	m.active = true
	m.transcript = ""
	m.setStatusLocked(StatusListening)
	m.mu.Unlock()
	return nil
}

// Stop deactivates the session: standby, capture stopped, playback
// silenced. Idempotent from any state; from a settled standby it makes no
// device calls at all.
func (m *Machine) Stop() {
	m.mu.Lock()
	if !m.active && m.status == StatusStandby {
		m.mu.Unlock()
		return
	}
	m.active = false
	m.gen++
	m.setStatusLocked(StatusStandby)
	m.mu.Unlock()

	m.playback.Cancel()
	m.capture.Stop()
}

// onTranscript accumulates the live transcript while listening. Interim
// results replace the previous interim text.
func (m *Machine) onTranscript(text string, final bool) {
	m.mu.Lock()
	if !m.active || m.status != StatusListening {
		m.mu.Unlock()
		return
	}
	m.transcript = text
	m.mu.Unlock()
	m.emit(TranscriptEvent{Text: text, Final: final})
}

// onUtteranceEnd handles the capture device's end-of-utterance signal.
func (m *Machine) onUtteranceEnd() {
	m.mu.Lock()
	if !m.active {
		// Deactivated mid-utterance: drain, never re-arm.
		m.setStatusLocked(StatusStandby)
		m.mu.Unlock()
		return
	}
	if m.status != StatusListening {
		m.mu.Unlock()
		return
	}

	text := strings.TrimSpace(m.transcript)
	if text == "" {
		// An empty utterance is not an error; re-arm and keep listening.
		gen := m.gen
		m.mu.Unlock()
		m.rearmCapture(gen)
		return
	}

	gen := m.gen
	ctx := m.ctx
	m.setStatusLocked(StatusProcessing)
	m.mu.Unlock()

	// Processing implies neither device is active.
	m.capture.Stop()
	m.playback.Cancel()

	go m.process(ctx, gen, text)
}

// process runs the single in-flight gateway call for this turn. Live mode
// carries no cross-turn memory, so history is always empty. A gateway
// failure resolves to a spoken apology instead of stranding the session in
// processing.
func (m *Machine) process(ctx context.Context, gen int, text string) {
	reply, err := m.gateway.Process(ctx, text, nil)

	replyText := core.VoiceApology
	if err != nil {
		m.logger.Warn("gateway failure folded into spoken apology", "error", err)
		m.emit(ErrorEvent{Code: "gateway_error", Message: err.Error()})
	} else {
		replyText = reply.Text
	}

	m.mu.Lock()
	m.lastReply = replyText
	if gen != m.gen || !m.active {
		// Deactivated while the call was in flight. The reply is kept in
		// lastReply, but no playback is armed.
		m.setStatusLocked(StatusStandby)
		m.mu.Unlock()
		return
	}
	m.setStatusLocked(StatusSpeaking)
	m.mu.Unlock()

	m.emit(ReplyEvent{Text: replyText})

	// Speaking implies capture is stopped.
	m.capture.Stop()
	m.playback.Speak(replyText, voice.VoiceHint{
		Name:   m.cfg.VoiceName,
		Locale: m.cfg.Locale,
		Pitch:  1.0,
		Rate:   1.0,
	})
}

// onPlaybackEnd handles the playback device's utterance-finished signal.
func (m *Machine) onPlaybackEnd() {
	m.mu.Lock()
	m.transcript = ""
	if !m.active {
		m.setStatusLocked(StatusStandby)
		m.mu.Unlock()
		return
	}
	gen := m.gen
	m.setStatusLocked(StatusListening)
	m.mu.Unlock()

	m.rearmCapture(gen)
}

// rearmCapture restarts the capture device for the next utterance. A Stop
// landing while the device call is in flight bumps the generation, so the
// restart is undone instead of leaving capture armed on an inactive
// session.
func (m *Machine) rearmCapture(gen int) {
	if err := m.capture.Start(); err != nil {
		m.failToStandby("capture_restart", err)
		return
	}
	m.mu.Lock()
	stale := gen != m.gen || !m.active
	m.mu.Unlock()
	if stale {
		m.capture.Stop()
	}
}

// failToStandby drains the session when a device cannot be re-armed.
func (m *Machine) failToStandby(code string, err error) {
	m.logger.Warn("voice session drained", "code", code, "error", err)
	m.mu.Lock()
	m.active = false
	m.gen++
	m.setStatusLocked(StatusStandby)
	m.mu.Unlock()
	m.emit(ErrorEvent{Code: code, Message: err.Error()})
}

// setStatusLocked updates the status and queues a transition event.
// Callers hold m.mu.
func (m *Machine) setStatusLocked(next Status) {
	if m.status == next {
		return
	}
	prev := m.status
	m.status = next
	m.logger.Debug("voice session transition", "from", prev.String(), "to", next.String())
	select {
	case m.events <- StatusChangedEvent{From: prev, To: next}:
	default:
	}
}

// emit queues an event without blocking.
func (m *Machine) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
	}
}
