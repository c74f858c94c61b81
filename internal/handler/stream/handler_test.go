package stream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lawofthedmz/Therabot/internal/service/session"
)

type stubDialogue struct{}

func (stubDialogue) StartSession(context.Context) (string, error) { return "hello", nil }

func (stubDialogue) SendTurn(_ context.Context, message string) (string, error) {
	return "echo: " + message, nil
}

func TestStreamDeliversMessageEvents(t *testing.T) {
	controller := session.New(stubDialogue{}, nil, nil)
	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("Start err: %v", err)
	}

	server := httptest.NewServer(New(controller))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/event-stream") {
		t.Fatalf("expected event-stream content type, got %q", got)
	}

	go func() {
		// Give the subscription a moment to attach before the turn runs.
		time.Sleep(50 * time.Millisecond)
		if err := controller.Submit(context.Background(), "how are you"); err != nil {
			t.Errorf("Submit err: %v", err)
		}
	}()

	var seen strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		seen.Write(buf[:n])
		if strings.Contains(seen.String(), "event: message") {
			break
		}
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				t.Fatalf("stream ended before a message event arrived:\n%s", seen.String())
			}
			t.Fatalf("read stream: %v", err)
		}
	}

	output := seen.String()
	if !strings.Contains(output, "event: status") {
		t.Fatalf("expected an initial status event, got:\n%s", output)
	}
	if !strings.Contains(output, "echo: how are you") && !strings.Contains(output, "how are you") {
		t.Fatalf("expected the turn's text on the stream, got:\n%s", output)
	}
}
