package protocol

import "time"

// SpeechRequest asks for a one-shot synthesis of a static block of text.
type SpeechRequest struct {
	RequestID string  `json:"request_id"`
	Text      string  `json:"text"`
	Voice     string  `json:"voice,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Target    string  `json:"target,omitempty"`
	TraceID   string  `json:"trace_id,omitempty"`
}

// StreamStart opens a streaming session. Published with a reply subject;
// the service answers with StreamStarted.
type StreamStart struct {
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed"`
}

// StreamStarted is the reply to StreamStart.
type StreamStarted struct {
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StreamText feeds a text fragment into an open session. Flush forces the
// pending remainder out after the fragment is consumed.
type StreamText struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Flush     bool   `json:"flush,omitempty"`
}

// StreamEnd closes a session.
type StreamEnd struct {
	SessionID string `json:"session_id"`
}

// TextUnit announces one synthesis-ready unit of normalized text.
type TextUnit struct {
	SessionID string `json:"session_id"`
	Sequence  int    `json:"sequence"`
	Text      string `json:"text"`
	Final     bool   `json:"final"`
}

// UnitBatch is the reply to a StreamText carrying a reply subject.
type UnitBatch struct {
	Units []TextUnit `json:"units"`
	Error string     `json:"error,omitempty"`
}

// AudioChunk carries synthesized PCM for one unit. UnitSequence is the
// session-wide ordinal of the source text unit; Sequence orders chunks
// within that unit.
type AudioChunk struct {
	SessionID    string `json:"session_id"`
	Target       string `json:"target,omitempty"`
	SampleRate   int    `json:"sample_rate"`
	Channels     int    `json:"channels"`
	UnitSequence int    `json:"unit_sequence"`
	Sequence     int    `json:"sequence"`
	PCM          []byte `json:"pcm"`
	Final        bool   `json:"final"`
}

// SynthStatus reports completion of a synthesis request or session.
type SynthStatus struct {
	SessionID string    `json:"session_id"`
	Target    string    `json:"target,omitempty"`
	Completed bool      `json:"completed"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectSpeechRequest = "speech.synthesize.request"
	SubjectStreamStart   = "speech.stream.start"
	SubjectStreamText    = "speech.stream.text"
	SubjectStreamEnd     = "speech.stream.end"
	SubjectUnitReady     = "speech.unit.ready"
	SubjectAudioChunk    = "speech.audio.chunk"
	SubjectAudioDone     = "speech.audio.done"
)
