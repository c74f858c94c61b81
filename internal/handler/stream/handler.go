// Package stream serves the controller's event feed over Server-Sent Events,
// so the UI can render new messages, state changes, and error notices without
// polling the transcript.
package stream

import (
	"log"
	"net/http"
	"time"

	"github.com/lawofthedmz/Therabot/internal/service/session"
	"github.com/lawofthedmz/Therabot/pkg/utils"
)

// Handler streams session events.
type Handler struct {
	controller *session.Controller
}

// New creates the stream handler.
func New(controller *session.Controller) *Handler {
	return &Handler{controller: controller}
}

// ServeHTTP opens an SSE stream of controller events. Heartbeats keep idle
// proxies from reaping the connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	events, cancel := h.controller.Subscribe()
	defer cancel()

	ctx := r.Context()
	log.Printf("[sse] event stream opened")

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	utils.SendSSEEvent(w, flusher, "status", map[string]string{
		"state": h.controller.State().String(),
	})

	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] event stream closed")
			return
		case event := <-events:
			utils.SendSSEEvent(w, flusher, string(event.Type), event)
		case <-ticker.C:
			utils.SendSSEEvent(w, flusher, "heartbeat", map[string]string{
				"time": time.Now().UTC().Format(time.RFC3339),
			})
		}
	}
}
