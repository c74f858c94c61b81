// Package session implements the conversation session controller: it owns the
// transcript, drives the request/reply cycle with the remote dialogue service,
// and synchronizes that cycle with the optional speech input/output adapters.
package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawofthedmz/Therabot/internal/analysis/mood"
	"github.com/lawofthedmz/Therabot/internal/model/chat"
	chatlog "github.com/lawofthedmz/Therabot/internal/service/chat"
)

// State is the controller's position in the turn cycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingGreeting
	StateReady
	StateAwaitingReply
	StateListening
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingGreeting:
		return "awaiting_greeting"
	case StateReady:
		return "ready"
	case StateAwaitingReply:
		return "awaiting_reply"
	case StateListening:
		return "listening"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy guards the single-in-flight-turn invariant: no submission is
	// accepted while a greeting or reply is outstanding.
	ErrBusy = errors.New("session: a request is already in flight")

	// ErrEmptyInput is the whitespace-only no-op policy. No message is
	// appended and no network call is made. Both the typed and the spoken
	// path share this guard.
	ErrEmptyInput = errors.New("session: empty input ignored")

	// ErrVoiceUnavailable is returned when voice capture is requested in a
	// deployment without a configured recognizer.
	ErrVoiceUnavailable = errors.New("session: voice input not available")
)

// DialogueClient is the outbound contract to the remote dialogue service.
type DialogueClient interface {
	StartSession(ctx context.Context) (string, error)
	SendTurn(ctx context.Context, message string) (string, error)
}

// Recognizer is the speech-input capability the controller toggles.
type Recognizer interface {
	Supported() bool
	Start(continuous bool) error
	Stop() string
	Clear()
}

// Synthesizer is the speech-output capability for spoken replies.
type Synthesizer interface {
	Supported() bool
	Speak(text, tone string) error
}

// EventType classifies controller events published to the UI stream.
type EventType string

const (
	EventMessage EventType = "message"
	EventState   EventType = "state"
	EventError   EventType = "error"
	EventReset   EventType = "reset"
)

// Event is one observable controller occurrence. Network failures surface
// here as error events rather than as transcript entries, so a failed turn
// leaves the transcript exactly as the user last saw it.
type Event struct {
	Type    EventType     `json:"type"`
	Message *chat.Message `json:"message,omitempty"`
	State   string        `json:"state,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Controller orchestrates the transcript, dialogue client, and speech
// adapters for a single conversation session.
type Controller struct {
	client      DialogueClient
	recognizer  Recognizer
	synthesizer Synthesizer
	transcript  *chatlog.Log

	mu          sync.Mutex
	state       State
	session     chat.Session
	voiceOutput bool
	pending     string
	epoch       int

	subMu       sync.Mutex
	subscribers map[int]chan Event
	nextSub     int
}

// New wires a controller. recognizer and synthesizer may be nil for a
// text-only deployment; voice output starts enabled whenever a synthesizer
// is available.
func New(client DialogueClient, recognizer Recognizer, synthesizer Synthesizer) *Controller {
	return &Controller{
		client:      client,
		recognizer:  recognizer,
		synthesizer: synthesizer,
		transcript:  chatlog.NewLog(),
		voiceOutput: synthesizer != nil && synthesizer.Supported(),
		subscribers: make(map[int]chan Event),
	}
}

// Start opens a session and fetches the greeting. On failure the error is
// reported and the controller still lands in Ready with an empty transcript;
// the session stays usable and no retry is attempted.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateAwaitingGreeting || c.state == StateAwaitingReply {
		c.mu.Unlock()
		return ErrBusy
	}
	c.session = chat.Session{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	epoch := c.epoch
	c.setStateLocked(StateAwaitingGreeting)
	c.mu.Unlock()

	reply, err := c.client.StartSession(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return nil
	}
	if err != nil {
		log.Printf("[session] start_chat failed: %v", err)
		c.setStateLocked(StateReady)
		c.publish(Event{Type: EventError, Error: "could not reach the dialogue service"})
		return err
	}

	c.appendBotLocked("", reply)
	c.setStateLocked(StateReady)
	return nil
}

// Submit runs one turn with the trimmed text. Whitespace-only input is the
// documented no-op; a turn already in flight rejects with ErrBusy. On a
// failed exchange the user message stays in the transcript with no reply and
// the controller returns to Ready.
func (c *Controller) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return ErrBusy
	}
	userMood := mood.ScoreUtterance(text)
	userMsg := c.transcript.Append(chat.SenderUser, text, string(userMood.Tone))
	c.pending = ""
	epoch := c.epoch
	c.setStateLocked(StateAwaitingReply)
	c.publish(Event{Type: EventMessage, Message: &userMsg})
	c.mu.Unlock()

	reply, err := c.client.SendTurn(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		// The session was reset while this turn was in flight; the reply
		// belongs to a transcript that no longer exists.
		return nil
	}
	if err != nil {
		log.Printf("[session] chat turn failed: %v", err)
		c.setStateLocked(StateReady)
		c.publish(Event{Type: EventError, Error: "the dialogue service did not answer"})
		return err
	}

	c.appendBotLocked(text, reply)
	c.setStateLocked(StateReady)
	return nil
}

// appendBotLocked records a reply, publishes it, and speaks it when voice
// output is enabled at that moment. Callers hold c.mu.
func (c *Controller) appendBotLocked(userText, reply string) {
	decision := mood.Analyze(userText, reply)
	botMsg := c.transcript.Append(chat.SenderBot, reply, string(decision.Tone))
	c.publish(Event{Type: EventMessage, Message: &botMsg})

	if c.voiceOutput && c.synthesizer != nil && c.synthesizer.Supported() {
		// Speak only enqueues; playback is the synthesizer's worker's problem.
		if err := c.synthesizer.Speak(reply, string(decision.Tone)); err != nil {
			log.Printf("[session] speak failed: %v", err)
		}
	}
}

// ToggleListening flips voice capture. Starting clears any buffered
// transcript first; stopping flushes the final transcript and submits it
// through the same path as typed input, unless it is empty, in which case the
// controller simply returns to Ready without a network call.
func (c *Controller) ToggleListening(ctx context.Context) error {
	if c.recognizer == nil || !c.recognizer.Supported() {
		return ErrVoiceUnavailable
	}

	c.mu.Lock()
	switch c.state {
	case StateReady:
		c.recognizer.Clear()
		if err := c.recognizer.Start(true); err != nil {
			c.mu.Unlock()
			log.Printf("[session] voice capture failed to start: %v", err)
			return err
		}
		c.setStateLocked(StateListening)
		c.mu.Unlock()
		return nil

	case StateListening:
		c.setStateLocked(StateReady)
		c.mu.Unlock()

		final := strings.TrimSpace(c.recognizer.Stop())
		if final == "" {
			return nil
		}

		c.mu.Lock()
		c.pending = final
		c.mu.Unlock()
		return c.Submit(ctx, final)

	default:
		c.mu.Unlock()
		return ErrBusy
	}
}

// Reset is a full session restart: capture stops, buffers and transcript are
// cleared, and a new session is opened from the top.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	wasListening := c.state == StateListening
	c.epoch++
	c.state = StateIdle
	c.pending = ""
	c.mu.Unlock()

	if c.recognizer != nil && c.recognizer.Supported() {
		if wasListening {
			c.recognizer.Stop()
		}
		c.recognizer.Clear()
	}

	c.transcript.Reset()
	c.publish(Event{Type: EventReset})

	return c.Start(ctx)
}

// SetVoiceOutput flips spoken replies on or off. Past messages and in-flight
// turns are untouched; the flag is read when each reply arrives.
func (c *Controller) SetVoiceOutput(enabled bool) {
	c.mu.Lock()
	c.voiceOutput = enabled
	c.mu.Unlock()
}

// ToggleVoiceOutput flips the flag and returns the new value.
func (c *Controller) ToggleVoiceOutput() bool {
	c.mu.Lock()
	c.voiceOutput = !c.voiceOutput
	enabled := c.voiceOutput
	c.mu.Unlock()
	return enabled
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the active session identity.
func (c *Controller) Session() chat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Transcript returns a copy of the message log.
func (c *Controller) Transcript() []chat.Message {
	return c.transcript.Messages()
}

// VoiceOutputEnabled reports whether replies are currently spoken.
func (c *Controller) VoiceOutputEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voiceOutput
}

// Listening reports whether voice capture is active.
func (c *Controller) Listening() bool {
	return c.State() == StateListening
}

// VoiceInputSupported reports whether the deployment offers voice capture.
// When false the UI presents text-only controls; this is decided once, up
// front, never at call time.
func (c *Controller) VoiceInputSupported() bool {
	return c.recognizer != nil && c.recognizer.Supported()
}

// VoiceOutputSupported reports whether spoken replies can be offered.
func (c *Controller) VoiceOutputSupported() bool {
	return c.synthesizer != nil && c.synthesizer.Supported()
}

// setStateLocked transitions state and publishes the change. Callers hold c.mu.
func (c *Controller) setStateLocked(next State) {
	if c.state == next {
		return
	}
	c.state = next
	c.publish(Event{Type: EventState, State: next.String()})
}

// Subscribe registers an event listener. The returned cancel func must be
// called to release the subscription. Slow listeners lose events rather than
// stalling a turn.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, 32)
	c.subscribers[id] = ch
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		if _, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(ch)
		}
		c.subMu.Unlock()
	}
	return ch, cancel
}

func (c *Controller) publish(event Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
