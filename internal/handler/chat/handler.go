package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lawofthedmz/Therabot/internal/service/session"
	"github.com/lawofthedmz/Therabot/pkg/utils"
)

// Handler exposes the session controller to the browser UI.
type Handler struct {
	controller *session.Controller
}

// New creates the chat handler.
func New(controller *session.Controller) *Handler {
	return &Handler{controller: controller}
}

// RegisterRoutes wires the conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/transcript", h.handleTranscript)
	r.Post("/messages", h.handleSubmit)
	r.Post("/session/reset", h.handleReset)
	r.Post("/voice/output", h.handleVoiceOutput)
	r.Post("/voice/input/toggle", h.handleVoiceInputToggle)
}

// transcriptView is the UI's full picture of the session.
type transcriptView struct {
	Session              interface{} `json:"session"`
	State                string      `json:"state"`
	Messages             interface{} `json:"messages"`
	VoiceInputSupported  bool        `json:"voiceInputSupported"`
	VoiceOutputSupported bool        `json:"voiceOutputSupported"`
	VoiceOutputEnabled   bool        `json:"voiceOutputEnabled"`
	Listening            bool        `json:"listening"`
}

func (h *Handler) view() transcriptView {
	return transcriptView{
		Session:              h.controller.Session(),
		State:                h.controller.State().String(),
		Messages:             h.controller.Transcript(),
		VoiceInputSupported:  h.controller.VoiceInputSupported(),
		VoiceOutputSupported: h.controller.VoiceOutputSupported(),
		VoiceOutputEnabled:   h.controller.VoiceOutputEnabled(),
		Listening:            h.controller.Listening(),
	}
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.view())
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.controller.Submit(r.Context(), payload.Text)
	switch {
	case errors.Is(err, session.ErrEmptyInput):
		utils.RespondError(w, http.StatusBadRequest, "message text is required")
	case errors.Is(err, session.ErrBusy):
		utils.RespondError(w, http.StatusConflict, "a turn is already in flight")
	case err != nil:
		// The user message stays in the transcript; report and let the UI
		// continue from the returned state.
		utils.RespondJSON(w, http.StatusBadGateway, h.view())
	default:
		utils.RespondJSON(w, http.StatusOK, h.view())
	}
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Reset(r.Context()); err != nil {
		if errors.Is(err, session.ErrBusy) {
			utils.RespondError(w, http.StatusConflict, "a turn is already in flight")
			return
		}
		utils.RespondJSON(w, http.StatusBadGateway, h.view())
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.view())
}

func (h *Handler) handleVoiceOutput(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Enabled != nil {
		h.controller.SetVoiceOutput(*payload.Enabled)
	} else {
		h.controller.ToggleVoiceOutput()
	}
	utils.RespondJSON(w, http.StatusOK, map[string]bool{
		"voiceOutputEnabled": h.controller.VoiceOutputEnabled(),
	})
}

func (h *Handler) handleVoiceInputToggle(w http.ResponseWriter, r *http.Request) {
	err := h.controller.ToggleListening(r.Context())
	switch {
	case errors.Is(err, session.ErrVoiceUnavailable):
		utils.RespondError(w, http.StatusNotImplemented, "voice input not available")
	case errors.Is(err, session.ErrBusy):
		utils.RespondError(w, http.StatusConflict, "a turn is already in flight")
	case err != nil:
		utils.RespondJSON(w, http.StatusBadGateway, h.view())
	default:
		utils.RespondJSON(w, http.StatusOK, h.view())
	}
}
