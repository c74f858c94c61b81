package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// NetworkError reports a failed exchange with the dialogue service: either the
// transport failed outright or the service answered with a non-2xx status.
type NetworkError struct {
	Op     string // "start_chat" or "chat"
	Status int    // zero when the request never completed
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("dialogue %s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("dialogue %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err wraps a dialogue transport failure.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Client talks to the remote dialogue service. It is stateless between calls;
// the service infers conversation context on its side. Callers must not issue
// a second turn while one is outstanding; the session controller enforces
// that, not this client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the service at baseURL. A nil httpClient gets
// a default with a conservative timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type replyPayload struct {
	Reply string `json:"reply"`
}

// StartSession opens a fresh conversation and returns the service's greeting.
// Single attempt; the caller decides what to do on failure.
func (c *Client) StartSession(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/start_chat", nil)
	if err != nil {
		return "", &NetworkError{Op: "start_chat", Err: err}
	}
	return c.exchange("start_chat", req)
}

// SendTurn forwards one user message and returns the service's reply.
func (c *Client) SendTurn(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return "", &NetworkError{Op: "chat", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", &NetworkError{Op: "chat", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	return c.exchange("chat", req)
}

func (c *Client) exchange(op string, req *http.Request) (string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", &NetworkError{Op: op, Status: resp.StatusCode}
	}

	var payload replyPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &NetworkError{Op: op, Err: fmt.Errorf("decode reply: %w", err)}
	}
	return payload.Reply, nil
}
