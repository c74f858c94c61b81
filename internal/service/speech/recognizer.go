package speech

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamRecognizer is a websocket client for a streaming speech-to-text
// provider. Audio frames captured in the browser are forwarded with SendAudio;
// the provider answers with incremental transcript snapshots. The transcript
// buffered at Stop time is the authoritative text for submission.
type StreamRecognizer struct {
	cfg    Config
	dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	active bool
	latest string
	done   chan struct{}

	snapshots chan Snapshot
}

type asrStartFrame struct {
	Type       string `json:"type"`
	Language   string `json:"language,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Continuous bool   `json:"continuous"`
}

type asrControlFrame struct {
	Type string `json:"type"`
}

// NewStreamRecognizer builds a recognizer for the configured ASR endpoint.
func NewStreamRecognizer(cfg Config) *StreamRecognizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &StreamRecognizer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.Timeout,
		},
		snapshots: make(chan Snapshot, 16),
	}
}

// Supported reports whether an ASR endpoint is configured.
func (r *StreamRecognizer) Supported() bool { return r.cfg.RecognizerEnabled() }

// Start opens a capture stream. It is a silent no-op when already capturing
// or when the capability is unsupported, matching the toggle semantics of the
// voice controls.
func (r *StreamRecognizer) Start(continuous bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active || !r.Supported() {
		return nil
	}

	header := http.Header{}
	if r.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+r.cfg.Token)
	}

	conn, resp, err := r.dialer.Dial(r.cfg.ASREndpoint, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return err
	}

	start := asrStartFrame{
		Type:       "start",
		Language:   r.cfg.Language,
		SampleRate: r.cfg.SampleRate,
		Continuous: continuous,
	}
	if err := conn.WriteJSON(start); err != nil {
		conn.Close()
		return err
	}

	r.conn = conn
	r.active = true
	r.latest = ""
	r.done = make(chan struct{})
	go r.readLoop(conn, r.done)

	return nil
}

// readLoop consumes transcript snapshots until the provider closes the stream.
func (r *StreamRecognizer) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		var snap Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[speech] asr stream closed: %v", err)
			}
			return
		}

		r.mu.Lock()
		r.latest = snap.Text
		r.mu.Unlock()

		select {
		case r.snapshots <- snap:
		default:
			// A stale snapshot is superseded anyway; drop rather than block.
		}

		if snap.Final {
			return
		}
	}
}

// SendAudio forwards one captured audio frame to the provider.
func (r *StreamRecognizer) SendAudio(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active || r.conn == nil {
		return ErrNotCapturing
	}
	return r.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

// Stop ends the capture and returns the final transcript. The provider's last
// snapshot is flushed before Stop returns, so the result is authoritative.
func (r *StreamRecognizer) Stop() string {
	r.mu.Lock()
	if !r.active {
		final := r.latest
		r.mu.Unlock()
		return final
	}

	r.active = false
	conn := r.conn
	done := r.done
	r.conn = nil

	// Ask for the final result before tearing the connection down.
	if err := conn.WriteJSON(asrControlFrame{Type: "stop"}); err != nil {
		log.Printf("[speech] asr stop frame: %v", err)
	}
	r.mu.Unlock()

	select {
	case <-done:
	case <-time.After(r.cfg.Timeout):
		log.Printf("[speech] asr final flush timed out")
	}
	conn.Close()

	r.mu.Lock()
	final := r.latest
	r.mu.Unlock()
	return final
}

// Clear discards the buffered transcript. Callable while idle or capturing.
func (r *StreamRecognizer) Clear() {
	r.mu.Lock()
	r.latest = ""
	r.mu.Unlock()

	for {
		select {
		case <-r.snapshots:
		default:
			return
		}
	}
}

// Snapshots exposes the incremental transcript stream, newest state last.
func (r *StreamRecognizer) Snapshots() <-chan Snapshot { return r.snapshots }
