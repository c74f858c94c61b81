package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/lawofthedmz/Therabot/internal/handler/chat"
	speechhandler "github.com/lawofthedmz/Therabot/internal/handler/speech"
	"github.com/lawofthedmz/Therabot/internal/handler/stream"
	"github.com/lawofthedmz/Therabot/internal/middleware"
	"github.com/lawofthedmz/Therabot/internal/service/session"
	speechsvc "github.com/lawofthedmz/Therabot/internal/service/speech"
)

// NewRouter wires HTTP routes to the session controller and speech adapters.
func NewRouter(controller *session.Controller, recognizer *speechsvc.StreamRecognizer, synthesizer *speechsvc.StreamSynthesizer, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins))

	chatHandler := chat.New(controller)
	streamHandler := stream.New(controller)
	speechHandler := speechhandler.New(recognizer, synthesizer)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		api.Get("/events", streamHandler.ServeHTTP)
		speechHandler.RegisterRoutes(api)
	})

	return r
}
