// Package speech wraps the remote speech capabilities: a streaming
// speech-to-text recognizer fed with browser audio frames, and a
// text-to-speech synthesizer that plays one utterance at a time.
//
// Both are capability providers in the session controller's sense: support is
// decided once, from configuration, before any capture or synthesis attempt.
// An unconfigured capability routes the UI to text-only mode instead of
// failing at call time.
package speech

import (
	"errors"
	"time"
)

// ErrUnsupported is returned when a speech capability is not configured in
// this deployment. It is a precondition failure, not a runtime error: callers
// are expected to check Supported() and degrade to text-only mode.
var ErrUnsupported = errors.New("speech: capability not configured")

// ErrNotCapturing is returned when audio arrives outside an active capture.
var ErrNotCapturing = errors.New("speech: no active capture")

// Snapshot is one incremental transcript state. Each snapshot supersedes the
// previous one; only the value observed at stop time is authoritative.
type Snapshot struct {
	Text  string `json:"text"`
	Final bool   `json:"isFinal"`
}

// AudioSink receives synthesized audio chunks for delivery to the client.
type AudioSink func(chunk []byte)

// Config carries the provider endpoints and voice settings.
type Config struct {
	ASREndpoint string
	TTSEndpoint string
	Token       string
	Language    string
	Voice       string
	Speed       float32
	SampleRate  int
	Timeout     time.Duration
}

// RecognizerEnabled reports whether speech input can be offered.
func (c Config) RecognizerEnabled() bool { return c.ASREndpoint != "" }

// SynthesizerEnabled reports whether speech output can be offered.
func (c Config) SynthesizerEnabled() bool { return c.TTSEndpoint != "" }
