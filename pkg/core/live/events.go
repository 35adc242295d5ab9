package live

// Event is an observable session occurrence. The machine never blocks on a
// slow observer; events are dropped when the channel is full.
type Event interface {
	eventType() string
}

// StatusChangedEvent reports a state transition.
type StatusChangedEvent struct {
	From Status
	To   Status
}

func (StatusChangedEvent) eventType() string { return "status_changed" }

// TranscriptEvent reports interim or final recognized text.
type TranscriptEvent struct {
	Text  string
	Final bool
}

func (TranscriptEvent) eventType() string { return "transcript" }

// ReplyEvent reports the assistant reply about to be spoken.
type ReplyEvent struct {
	Text string
}

func (ReplyEvent) eventType() string { return "reply" }

// ErrorEvent reports a non-fatal session error.
type ErrorEvent struct {
	Code    string
	Message string
}

func (ErrorEvent) eventType() string { return "error" }
