// Package speech bridges the browser's voice channel: captured audio frames
// come in over a websocket and are fed to the streaming recognizer, while
// transcript snapshots and synthesized reply audio travel back out.
package speech

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	speechsvc "github.com/lawofthedmz/Therabot/internal/service/speech"
	"github.com/lawofthedmz/Therabot/pkg/utils"
)

// Handler owns the voice websocket endpoint.
type Handler struct {
	recognizer  *speechsvc.StreamRecognizer
	synthesizer *speechsvc.StreamSynthesizer
	upgrader    websocket.Upgrader
}

// New creates the speech handler. Either adapter may be nil when the
// capability is not configured.
func New(recognizer *speechsvc.StreamRecognizer, synthesizer *speechsvc.StreamSynthesizer) *Handler {
	return &Handler{
		recognizer:  recognizer,
		synthesizer: synthesizer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes wires the voice routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/speech/health", h.handleHealth)
	if h.recognizer != nil || h.synthesizer != nil {
		r.Get("/speech/ws", h.handleWebSocket)
	} else {
		r.Get("/speech/ws", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondError(w, http.StatusNotImplemented, "speech not available")
		})
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]bool{
		"asr": h.recognizer != nil && h.recognizer.Supported(),
		"tts": h.synthesizer != nil && h.synthesizer.Supported(),
	})
}

// wsConn serializes writes; snapshots, audio, and pings race otherwise.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) writeBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

type outboundSnapshot struct {
	Type string             `json:"type"`
	Data speechsvc.Snapshot `json:"data"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[speech] websocket upgrade failed: %v", err)
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	log.Printf("[speech] voice channel opened")

	done := make(chan struct{})
	defer close(done)

	// Reply audio goes out as binary frames on this same socket.
	if h.synthesizer != nil {
		h.synthesizer.SetSink(func(chunk []byte) {
			if err := conn.writeBinary(chunk); err != nil {
				log.Printf("[speech] audio delivery failed: %v", err)
			}
		})
		defer h.synthesizer.SetSink(nil)
	}

	// Forward transcript snapshots as they arrive.
	if h.recognizer != nil {
		go func() {
			snapshots := h.recognizer.Snapshots()
			for {
				select {
				case <-done:
					return
				case snap := <-snapshots:
					msg := outboundSnapshot{Type: "snapshot", Data: snap}
					if err := conn.writeJSON(msg); err != nil {
						return
					}
				}
			}
		}()
	}

	raw.SetReadLimit(1 << 20)
	for {
		raw.SetReadDeadline(time.Now().Add(120 * time.Second))
		messageType, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[speech] voice channel error: %v", err)
			} else {
				log.Printf("[speech] voice channel closed")
			}
			return
		}

		if messageType != websocket.BinaryMessage || h.recognizer == nil {
			continue
		}
		if err := h.recognizer.SendAudio(data); err != nil {
			// Frames outside an active capture are expected around toggles.
			continue
		}
	}
}
