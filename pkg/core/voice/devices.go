// Package voice defines the capture (speech-to-text) and playback
// (text-to-speech) device contracts consumed by the live session machine,
// together with WebSocket-backed production adapters.
package voice

import "strings"

// CaptureHandlers receives capture device events. Handlers are invoked on
// the device's delivery goroutine; implementations must not block.
type CaptureHandlers struct {
	// OnTranscript delivers interim (final=false) and final transcript text.
	OnTranscript func(text string, final bool)

	// OnEnd signals end of utterance. The device supports an immediate
	// restart from inside this handler.
	OnEnd func()
}

// CaptureDevice is a speech-to-text input device.
//
// Start and Stop are tolerant of redundancy: starting a started device or
// stopping a stopped one must not fail. Start returns an error only when
// the underlying hardware or service is unavailable.
type CaptureDevice interface {
	Start() error
	Stop()
	SetHandlers(h CaptureHandlers)
}

// PlaybackDevice is a text-to-speech output device.
type PlaybackDevice interface {
	// Speak begins synthesis and playback of text. The end handler fires
	// when playback finishes naturally; a cancelled utterance fires nothing.
	Speak(text string, hint VoiceHint)

	// Cancel silences the device immediately. Safe to call at any time.
	Cancel()

	SetOnEnd(fn func())
}

// VoiceHint steers synthesis voice selection.
type VoiceHint struct {
	Name   string
	Locale string
	Pitch  float64
	Rate   float64
}

// Voice describes one synthesis voice offered by a playback device.
type Voice struct {
	Name    string
	Locale  string
	Default bool
}

// ChooseVoice prefers a voice whose name contains or whose locale equals
// the target locale; otherwise it falls back to the device default, or nil
// when the device offers nothing at all.
func ChooseVoice(voices []Voice, locale string) *Voice {
	for i := range voices {
		if strings.Contains(voices[i].Name, locale) || voices[i].Locale == locale {
			return &voices[i]
		}
	}
	for i := range voices {
		if voices[i].Default {
			return &voices[i]
		}
	}
	return nil
}
