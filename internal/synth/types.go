package synth

import "context"

// Request contains parameters to synthesize one text unit.
type Request struct {
	SessionID string
	Text      string
	Voice     string
	Speed     float64
}

// Chunk contains PCM data.
type Chunk struct {
	SessionID  string
	Sequence   int
	SampleRate int
	Channels   int
	PCM        []byte
	Final      bool
}

// Synthesizer is the contract for producing audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (<-chan Chunk, <-chan error)
}
