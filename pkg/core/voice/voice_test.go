package voice

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestChooseVoice(t *testing.T) {
	voices := []Voice{
		{Name: "Aurora", Locale: "fr-FR"},
		{Name: "Google US English", Locale: "en-US"},
		{Name: "Fallback", Locale: "de-DE", Default: true},
	}

	tests := []struct {
		name   string
		locale string
		want   string
	}{
		{"locale match", "en-US", "Google US English"},
		{"name match", "US English", "Google US English"},
		{"no match falls back to default", "ja-JP", "Fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChooseVoice(voices, tt.locale)
			if got == nil || got.Name != tt.want {
				t.Errorf("ChooseVoice(%q) = %v, want %q", tt.locale, got, tt.want)
			}
		})
	}

	if got := ChooseVoice(nil, "en-US"); got != nil {
		t.Errorf("ChooseVoice with no voices = %v, want nil", got)
	}
}

var upgrader = websocket.Upgrader{}

// sttServer fakes a streaming transcription endpoint: every received audio
// frame is acknowledged with a transcript event, and a zero-length frame
// triggers end of utterance.
func sttServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			if len(data) == 0 {
				conn.WriteJSON(captureEvent{Type: "end"})
				continue
			}
			conn.WriteJSON(captureEvent{Type: "transcript", Text: "hello", IsFinal: true})
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestStreamCapture_TranscriptAndEnd(t *testing.T) {
	srv := sttServer(t)
	defer srv.Close()

	var mu sync.Mutex
	var transcripts []string
	ends := 0
	notify := make(chan struct{}, 10)

	dev := NewStreamCapture(StreamCaptureConfig{URL: wsURL(srv)})
	dev.SetHandlers(CaptureHandlers{
		OnTranscript: func(text string, final bool) {
			mu.Lock()
			transcripts = append(transcripts, text)
			mu.Unlock()
			notify <- struct{}{}
		},
		OnEnd: func() {
			mu.Lock()
			ends++
			mu.Unlock()
			notify <- struct{}{}
		},
	})

	if err := dev.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer dev.Stop()

	if err := dev.Start(); err != nil {
		t.Fatalf("redundant Start must not fail: %v", err)
	}

	if err := dev.SendAudio([]byte{1, 2, 3}); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	waitSignal(t, notify)
	if err := dev.SendAudio(nil); err != nil {
		t.Fatalf("SendAudio end marker: %v", err)
	}
	waitSignal(t, notify)

	mu.Lock()
	defer mu.Unlock()
	if len(transcripts) != 1 || transcripts[0] != "hello" {
		t.Errorf("transcripts = %v, want [hello]", transcripts)
	}
	if ends != 1 {
		t.Errorf("end events = %d, want 1", ends)
	}
}

func TestStreamCapture_StopIsIdempotentAndSilences(t *testing.T) {
	srv := sttServer(t)
	defer srv.Close()

	events := 0
	var mu sync.Mutex
	dev := NewStreamCapture(StreamCaptureConfig{URL: wsURL(srv)})
	dev.SetHandlers(CaptureHandlers{
		OnEnd: func() {
			mu.Lock()
			events++
			mu.Unlock()
		},
	})
	if err := dev.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	dev.Stop()
	dev.Stop() // redundant stop must not panic

	if err := dev.SendAudio([]byte{1}); err != nil {
		t.Errorf("SendAudio after Stop must be a no-op, got %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if events != 0 {
		t.Errorf("events after Stop = %d, want 0", events)
	}
}

func TestStreamCapture_DialFailure(t *testing.T) {
	dev := NewStreamCapture(StreamCaptureConfig{
		URL:              "ws://127.0.0.1:1/nope",
		HandshakeTimeout: 200 * time.Millisecond,
	})
	if err := dev.Start(); err == nil {
		t.Fatal("Start against an unreachable endpoint must fail")
	}
}

// ttsServer fakes a synthesis endpoint: for each speak request it streams
// two audio frames and a done event.
func ttsServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var req speakRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01})
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x02})
		conn.WriteJSON(playbackEvent{Type: "done"})
	}))
}

func TestStreamPlayback_SpeakStreamsAndEnds(t *testing.T) {
	srv := ttsServer(t)
	defer srv.Close()

	var mu sync.Mutex
	var frames int
	ended := make(chan struct{}, 1)

	pb := NewStreamPlayback(StreamPlaybackConfig{
		URL: wsURL(srv),
		Sink: func(frame []byte) {
			mu.Lock()
			frames++
			mu.Unlock()
		},
	})
	pb.SetOnEnd(func() { ended <- struct{}{} })

	pb.Speak("hi there", VoiceHint{Locale: "en-US", Pitch: 1.0, Rate: 1.0})

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("utterance did not finish")
	}
	mu.Lock()
	defer mu.Unlock()
	if frames != 2 {
		t.Errorf("frames = %d, want 2", frames)
	}
}

func TestStreamPlayback_CancelSuppressesEnd(t *testing.T) {
	// A server that never sends done, so only Cancel can finish the stream.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var req speakRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		// Hold the stream open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ended := make(chan struct{}, 1)
	pb := NewStreamPlayback(StreamPlaybackConfig{URL: wsURL(srv), Sink: func([]byte) {}})
	pb.SetOnEnd(func() { ended <- struct{}{} })

	pb.Speak("long reply", VoiceHint{})
	pb.Cancel()
	pb.Cancel() // idempotent

	select {
	case <-ended:
		t.Fatal("cancelled utterance must not fire the end handler")
	case <-time.After(100 * time.Millisecond):
	}
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for device event")
	}
}
