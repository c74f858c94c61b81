package speech

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// utterance is one queued synthesis job.
type utterance struct {
	text string
	tone string
}

// StreamSynthesizer is a websocket client for a streaming text-to-speech
// provider. Speak enqueues an utterance and returns immediately; a single
// worker drains the queue so at most one utterance is synthesized and
// delivered at a time. Synthesis failures are logged and the utterance is
// dropped; playback carries no completion contract.
type StreamSynthesizer struct {
	cfg    Config
	dialer *websocket.Dialer

	sinkMu sync.Mutex
	sink   AudioSink

	queue chan utterance

	closeOnce sync.Once
	closed    chan struct{}
}

type ttsRequest struct {
	Text     string  `json:"text"`
	Voice    string  `json:"voice,omitempty"`
	Language string  `json:"language,omitempty"`
	Speed    float32 `json:"speed,omitempty"`
	Tone     string  `json:"tone,omitempty"`
}

type ttsChunk struct {
	Data  string `json:"data"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// NewStreamSynthesizer builds a synthesizer delivering audio to sink.
func NewStreamSynthesizer(cfg Config, sink AudioSink) *StreamSynthesizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	s := &StreamSynthesizer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.Timeout,
		},
		sink:   sink,
		queue:  make(chan utterance, 8),
		closed: make(chan struct{}),
	}
	go s.worker()
	return s
}

// Supported reports whether a TTS endpoint is configured.
func (s *StreamSynthesizer) Supported() bool { return s.cfg.SynthesizerEnabled() }

// SetSink replaces the audio delivery target. The speech websocket handler
// binds the sink to the active client connection.
func (s *StreamSynthesizer) SetSink(sink AudioSink) {
	s.sinkMu.Lock()
	s.sink = sink
	s.sinkMu.Unlock()
}

func (s *StreamSynthesizer) currentSink() AudioSink {
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	return s.sink
}

// Speak enqueues text for synthesis. Fire-and-forget: a full queue or an
// unsupported capability drops the utterance rather than blocking a turn.
func (s *StreamSynthesizer) Speak(text, tone string) error {
	if !s.Supported() {
		return ErrUnsupported
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	select {
	case s.queue <- utterance{text: text, tone: tone}:
		return nil
	case <-s.closed:
		return ErrUnsupported
	default:
		log.Printf("[speech] tts queue full, dropping utterance")
		return nil
	}
}

// Close stops the worker. Queued utterances are discarded.
func (s *StreamSynthesizer) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *StreamSynthesizer) worker() {
	for {
		select {
		case <-s.closed:
			return
		case u := <-s.queue:
			if err := s.synthesize(u); err != nil {
				log.Printf("[speech] tts synthesis failed: %v", err)
			}
		}
	}
}

// synthesize runs one full request/stream cycle against the provider.
func (s *StreamSynthesizer) synthesize(u utterance) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	header := http.Header{}
	if s.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.TTSEndpoint, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return err
	}
	defer conn.Close()

	req := ttsRequest{
		Text:     u.text,
		Voice:    s.cfg.Voice,
		Language: s.cfg.Language,
		Speed:    s.cfg.Speed,
		Tone:     u.tone,
	}
	if err := conn.WriteJSON(req); err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if ok {
		conn.SetReadDeadline(deadline)
	}

	for {
		var chunk ttsChunk
		if err := conn.ReadJSON(&chunk); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if chunk.Error != "" {
			return &providerError{message: chunk.Error}
		}
		if sink := s.currentSink(); chunk.Data != "" && sink != nil {
			audio, err := base64.StdEncoding.DecodeString(chunk.Data)
			if err != nil {
				return err
			}
			sink(audio)
		}
		if chunk.Done {
			return nil
		}
	}
}

type providerError struct {
	message string
}

func (e *providerError) Error() string { return "speech: provider error: " + e.message }
