package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lawofthedmz/Therabot/internal/config"
	"github.com/lawofthedmz/Therabot/internal/handler"
	"github.com/lawofthedmz/Therabot/internal/service/dialogue"
	"github.com/lawofthedmz/Therabot/internal/service/session"
	"github.com/lawofthedmz/Therabot/internal/service/speech"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	dialogueClient := dialogue.NewClient(cfg.Dialogue.BaseURL, &http.Client{
		Timeout: cfg.Dialogue.Timeout,
	})

	speechCfg := speech.Config{
		ASREndpoint: cfg.Speech.ASREndpoint,
		TTSEndpoint: cfg.Speech.TTSEndpoint,
		Token:       cfg.Speech.Token,
		Language:    cfg.Speech.Language,
		Voice:       cfg.Speech.Voice,
		Speed:       cfg.Speech.Speed,
		SampleRate:  cfg.Speech.SampleRate,
		Timeout:     cfg.Speech.Timeout,
	}

	var recognizer *speech.StreamRecognizer
	if speechCfg.RecognizerEnabled() {
		recognizer = speech.NewStreamRecognizer(speechCfg)
		log.Println("speech recognizer enabled")
	} else {
		log.Println("no ASR endpoint configured, voice input disabled")
	}

	var synthesizer *speech.StreamSynthesizer
	if speechCfg.SynthesizerEnabled() {
		synthesizer = speech.NewStreamSynthesizer(speechCfg, nil)
		defer synthesizer.Close()
		log.Println("speech synthesizer enabled")
	} else {
		log.Println("no TTS endpoint configured, voice output disabled")
	}

	// Interface conversion needs typed nils avoided; wire only what exists.
	var rec session.Recognizer
	if recognizer != nil {
		rec = recognizer
	}
	var syn session.Synthesizer
	if synthesizer != nil {
		syn = synthesizer
	}

	controller := session.New(dialogueClient, rec, syn)
	if err := controller.Start(ctx); err != nil {
		// A reported, non-fatal condition: the transcript stays empty and the
		// next reset retries from the top.
		log.Printf("initial greeting unavailable: %v", err)
	}

	router := handler.NewRouter(controller, recognizer, synthesizer, cfg.Server.AllowedOrigins)
	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Therabot backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
