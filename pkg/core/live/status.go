// Package live implements the voice session state machine: a continuous
// listen, transcribe, submit, speak loop over injected capture and playback
// devices.
package live

// Status is the sub-phase of an active voice session.
type Status int

const (
	// StatusStandby is the rest state: no capture, no playback.
	StatusStandby Status = iota
	// StatusListening is when the capture device is armed and accumulating
	// the live transcript.
	StatusListening
	// StatusProcessing is when one gateway request is in flight.
	StatusProcessing
	// StatusSpeaking is when the playback device is voicing the reply.
	StatusSpeaking
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusStandby:
		return "standby"
	case StatusListening:
		return "listening"
	case StatusProcessing:
		return "processing"
	case StatusSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}
