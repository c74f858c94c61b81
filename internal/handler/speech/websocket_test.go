package speech

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	speechsvc "github.com/lawofthedmz/Therabot/internal/service/speech"
)

func setupRouter(recognizer *speechsvc.StreamRecognizer, synthesizer *speechsvc.StreamSynthesizer) *chi.Mux {
	r := chi.NewRouter()
	New(recognizer, synthesizer).RegisterRoutes(r)
	return r
}

func TestHealthWithoutAdapters(t *testing.T) {
	r := setupRouter(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/speech/health", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body map[string]bool
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body["asr"] || body["tts"] {
		t.Fatalf("expected both capabilities off, got %v", body)
	}
}

func TestHealthReportsConfiguredAdapters(t *testing.T) {
	cfg := speechsvc.Config{
		ASREndpoint: "ws://asr.example/ws",
		TTSEndpoint: "ws://tts.example/ws",
	}
	recognizer := speechsvc.NewStreamRecognizer(cfg)
	synthesizer := speechsvc.NewStreamSynthesizer(cfg, nil)
	defer synthesizer.Close()

	r := setupRouter(recognizer, synthesizer)

	req := httptest.NewRequest(http.MethodGet, "/speech/health", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var body map[string]bool
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !body["asr"] || !body["tts"] {
		t.Fatalf("expected both capabilities on, got %v", body)
	}
}

func TestWebSocketUnavailableWithoutAdapters(t *testing.T) {
	r := setupRouter(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/speech/ws", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", resp.Code)
	}
}
