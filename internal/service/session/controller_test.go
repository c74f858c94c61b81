package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lawofthedmz/Therabot/internal/model/chat"
	"github.com/lawofthedmz/Therabot/internal/service/session"
)

type fakeDialogue struct {
	mu       sync.Mutex
	greeting string
	startErr error
	reply    func(message string) (string, error)
	sent     []string
	starts   int
}

func (f *fakeDialogue) StartSession(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return "", f.startErr
	}
	return f.greeting, nil
}

func (f *fakeDialogue) SendTurn(_ context.Context, message string) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, message)
	reply := f.reply
	f.mu.Unlock()
	if reply == nil {
		return "echo: " + message, nil
	}
	return reply(message)
}

func (f *fakeDialogue) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeRecognizer struct {
	mu        sync.Mutex
	supported bool
	buffer    string
	capturing bool
	clears    int
}

func (f *fakeRecognizer) Supported() bool { return f.supported }

func (f *fakeRecognizer) Start(_ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capturing = true
	return nil
}

func (f *fakeRecognizer) Stop() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capturing = false
	return f.buffer
}

func (f *fakeRecognizer) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buffer = ""
	f.clears++
}

func (f *fakeRecognizer) setBuffer(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buffer = text
}

type fakeSynthesizer struct {
	mu        sync.Mutex
	supported bool
	spoken    []string
}

func (f *fakeSynthesizer) Supported() bool { return f.supported }

func (f *fakeSynthesizer) Speak(text, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return nil
}

func (f *fakeSynthesizer) spokenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spoken)
}

func startedController(t *testing.T, dlg *fakeDialogue, rec session.Recognizer, syn session.Synthesizer) *session.Controller {
	t.Helper()
	controller := session.New(dlg, rec, syn)
	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	return controller
}

func TestTranscriptAlternatesAfterSuccessfulTurns(t *testing.T) {
	dlg := &fakeDialogue{greeting: "Hi, how are you feeling today?"}
	controller := startedController(t, dlg, nil, nil)
	ctx := context.Background()

	inputs := []string{"first", "second", "third"}
	for _, text := range inputs {
		if err := controller.Submit(ctx, text); err != nil {
			t.Fatalf("Submit(%q) err: %v", text, err)
		}
	}

	messages := controller.Transcript()
	if len(messages) != 1+2*len(inputs) {
		t.Fatalf("expected %d messages, got %d", 1+2*len(inputs), len(messages))
	}
	if messages[0].Sender != chat.SenderBot {
		t.Fatalf("transcript must start with the bot greeting, got %s", messages[0].Sender)
	}
	for i, m := range messages[1:] {
		want := chat.SenderUser
		if i%2 == 1 {
			want = chat.SenderBot
		}
		if m.Sender != want {
			t.Fatalf("message %d: expected sender %s, got %s", i+1, want, m.Sender)
		}
	}
}

func TestWhitespaceSubmitIsIgnored(t *testing.T) {
	dlg := &fakeDialogue{greeting: "hello"}
	controller := startedController(t, dlg, nil, nil)

	err := controller.Submit(context.Background(), "   \t  ")
	if !errors.Is(err, session.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if got := len(controller.Transcript()); got != 1 {
		t.Fatalf("expected only the greeting, got %d messages", got)
	}
	if dlg.sentCount() != 0 {
		t.Fatal("whitespace input must not trigger a network call")
	}
}

func TestFailedTurnKeepsUserMessage(t *testing.T) {
	dlg := &fakeDialogue{greeting: "hello"}
	dlg.reply = func(string) (string, error) {
		return "", errors.New("connection refused")
	}
	controller := startedController(t, dlg, nil, nil)
	ctx := context.Background()

	if err := controller.Submit(ctx, "are you there"); err == nil {
		t.Fatal("expected error from failed turn")
	}

	messages := controller.Transcript()
	if len(messages) != 2 {
		t.Fatalf("expected greeting + user message, got %d messages", len(messages))
	}
	if messages[1].Sender != chat.SenderUser || messages[1].Text != "are you there" {
		t.Fatalf("user message missing after failed turn: %+v", messages[1])
	}
	if controller.State() != session.StateReady {
		t.Fatalf("expected Ready after failure, got %s", controller.State())
	}

	// The controller must accept new input afterwards.
	dlg.reply = nil
	if err := controller.Submit(ctx, "retry"); err != nil {
		t.Fatalf("Submit after failure err: %v", err)
	}
}

func TestResetRestartsSession(t *testing.T) {
	dlg := &fakeDialogue{greeting: "welcome back"}
	rec := &fakeRecognizer{supported: true, buffer: "half a sentence"}
	controller := startedController(t, dlg, rec, nil)
	ctx := context.Background()

	if err := controller.Submit(ctx, "one"); err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	firstSession := controller.Session().ID

	if err := controller.Reset(ctx); err != nil {
		t.Fatalf("Reset err: %v", err)
	}

	messages := controller.Transcript()
	if len(messages) != 1 {
		t.Fatalf("expected exactly one greeting after reset, got %d messages", len(messages))
	}
	if messages[0].Sender != chat.SenderBot || messages[0].Text != "welcome back" {
		t.Fatalf("unexpected post-reset greeting: %+v", messages[0])
	}
	if dlg.starts != 2 {
		t.Fatalf("reset must re-open the session, got %d starts", dlg.starts)
	}
	if controller.Session().ID == firstSession {
		t.Fatal("reset must mint a new session identity")
	}
	if rec.clears == 0 {
		t.Fatal("reset must clear the buffered voice transcript")
	}
}

func TestVoiceOutputToggleControlsSpeaking(t *testing.T) {
	dlg := &fakeDialogue{greeting: "hello"}
	syn := &fakeSynthesizer{supported: true}
	controller := startedController(t, dlg, nil, syn)
	ctx := context.Background()

	// Voice output defaults on when a synthesizer exists: greeting is spoken.
	if syn.spokenCount() != 1 {
		t.Fatalf("expected the greeting to be spoken once, got %d", syn.spokenCount())
	}

	controller.SetVoiceOutput(false)
	if err := controller.Submit(ctx, "quiet please"); err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	if syn.spokenCount() != 1 {
		t.Fatalf("disabled voice output must not speak, got %d utterances", syn.spokenCount())
	}

	controller.SetVoiceOutput(true)
	if err := controller.Submit(ctx, "say it"); err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	if syn.spokenCount() != 2 {
		t.Fatalf("enabled voice output must speak exactly once per reply, got %d", syn.spokenCount())
	}
}

func TestAnxiousExchangeScenario(t *testing.T) {
	dlg := &fakeDialogue{greeting: "Hi, I'm here to listen."}
	dlg.reply = func(string) (string, error) {
		return "Tell me more about that.", nil
	}
	controller := startedController(t, dlg, nil, nil)

	if err := controller.Submit(context.Background(), "I feel anxious today"); err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	messages := controller.Transcript()
	want := []struct {
		sender chat.Sender
		text   string
	}{
		{chat.SenderBot, "Hi, I'm here to listen."},
		{chat.SenderUser, "I feel anxious today"},
		{chat.SenderBot, "Tell me more about that."},
	}
	if len(messages) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(messages))
	}
	for i, w := range want {
		if messages[i].Sender != w.sender || messages[i].Text != w.text {
			t.Fatalf("message %d: got %s %q, want %s %q", i, messages[i].Sender, messages[i].Text, w.sender, w.text)
		}
	}
}

func TestVoiceSubmissionMatchesTypedShape(t *testing.T) {
	ctx := context.Background()

	typedDlg := &fakeDialogue{greeting: "hello"}
	typed := startedController(t, typedDlg, nil, nil)
	if err := typed.Submit(ctx, "I am stressed"); err != nil {
		t.Fatalf("typed Submit err: %v", err)
	}

	spokenDlg := &fakeDialogue{greeting: "hello"}
	rec := &fakeRecognizer{supported: true}
	spoken := startedController(t, spokenDlg, rec, nil)

	if err := spoken.ToggleListening(ctx); err != nil {
		t.Fatalf("ToggleListening (start) err: %v", err)
	}
	if spoken.State() != session.StateListening {
		t.Fatalf("expected Listening, got %s", spoken.State())
	}
	rec.setBuffer("I am stressed")
	if err := spoken.ToggleListening(ctx); err != nil {
		t.Fatalf("ToggleListening (stop) err: %v", err)
	}

	typedMsgs := typed.Transcript()
	spokenMsgs := spoken.Transcript()
	if len(typedMsgs) != len(spokenMsgs) {
		t.Fatalf("transcript shapes diverge: typed %d vs spoken %d", len(typedMsgs), len(spokenMsgs))
	}
	for i := range typedMsgs {
		if typedMsgs[i].Sender != spokenMsgs[i].Sender || typedMsgs[i].Text != spokenMsgs[i].Text {
			t.Fatalf("message %d diverges: typed %s %q, spoken %s %q",
				i, typedMsgs[i].Sender, typedMsgs[i].Text, spokenMsgs[i].Sender, spokenMsgs[i].Text)
		}
	}
}

func TestEmptyVoiceTranscriptDoesNotSubmit(t *testing.T) {
	dlg := &fakeDialogue{greeting: "hello"}
	rec := &fakeRecognizer{supported: true}
	controller := startedController(t, dlg, rec, nil)
	ctx := context.Background()

	if err := controller.ToggleListening(ctx); err != nil {
		t.Fatalf("ToggleListening (start) err: %v", err)
	}
	rec.setBuffer("   ")
	if err := controller.ToggleListening(ctx); err != nil {
		t.Fatalf("ToggleListening (stop) err: %v", err)
	}

	if controller.State() != session.StateReady {
		t.Fatalf("expected Ready, got %s", controller.State())
	}
	if got := len(controller.Transcript()); got != 1 {
		t.Fatalf("empty voice transcript must not add messages, got %d", got)
	}
	if dlg.sentCount() != 0 {
		t.Fatal("empty voice transcript must not trigger a network call")
	}
}

func TestSecondTurnRejectedWhileAwaitingReply(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once

	dlg := &fakeDialogue{greeting: "hello"}
	dlg.reply = func(string) (string, error) {
		once.Do(func() { close(entered) })
		<-release
		return "done", nil
	}
	controller := startedController(t, dlg, nil, nil)
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		errCh <- controller.Submit(ctx, "slow one")
	}()
	<-entered

	if err := controller.Submit(ctx, "impatient"); !errors.Is(err, session.ErrBusy) {
		t.Fatalf("expected ErrBusy for overlapping turn, got %v", err)
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("slow turn err: %v", err)
	}

	messages := controller.Transcript()
	if len(messages) != 3 {
		t.Fatalf("expected greeting + one full turn, got %d messages", len(messages))
	}
}

func TestStartFailureLeavesSessionContinuable(t *testing.T) {
	dlg := &fakeDialogue{startErr: errors.New("unreachable")}
	controller := session.New(dlg, nil, nil)

	if err := controller.Start(context.Background()); err == nil {
		t.Fatal("expected start failure")
	}
	if got := len(controller.Transcript()); got != 0 {
		t.Fatalf("failed start must leave the transcript empty, got %d messages", got)
	}
	if controller.State() != session.StateReady {
		t.Fatalf("expected Ready after failed start, got %s", controller.State())
	}

	// The session stays usable for typed turns.
	if err := controller.Submit(context.Background(), "still there?"); err != nil {
		t.Fatalf("Submit after failed start err: %v", err)
	}
}

func TestToggleListeningWithoutRecognizer(t *testing.T) {
	dlg := &fakeDialogue{greeting: "hello"}
	controller := startedController(t, dlg, nil, nil)

	err := controller.ToggleListening(context.Background())
	if !errors.Is(err, session.ErrVoiceUnavailable) {
		t.Fatalf("expected ErrVoiceUnavailable, got %v", err)
	}
}

func TestResetDiscardsInFlightReply(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once

	dlg := &fakeDialogue{greeting: "hello"}
	dlg.reply = func(string) (string, error) {
		once.Do(func() { close(entered) })
		<-release
		return "stale reply", nil
	}
	controller := startedController(t, dlg, nil, nil)
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		errCh <- controller.Submit(ctx, "about to be orphaned")
	}()
	<-entered

	if err := controller.Reset(ctx); err != nil {
		t.Fatalf("Reset err: %v", err)
	}
	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("orphaned turn err: %v", err)
	}

	for _, m := range controller.Transcript() {
		if m.Text == "stale reply" {
			t.Fatal("a reply from before the reset must not reach the new transcript")
		}
	}
	if got := len(controller.Transcript()); got != 1 {
		t.Fatalf("expected only the fresh greeting, got %d messages", got)
	}
}

func TestErrorEventsArePublished(t *testing.T) {
	dlg := &fakeDialogue{greeting: "hello"}
	dlg.reply = func(string) (string, error) {
		return "", errors.New("boom")
	}
	controller := startedController(t, dlg, nil, nil)

	events, cancel := controller.Subscribe()
	defer cancel()

	if err := controller.Submit(context.Background(), "trigger"); err == nil {
		t.Fatal("expected failed turn")
	}

	deadline := time.After(time.Second)
	for {
		select {
		case event := <-events:
			if event.Type == session.EventError {
				return
			}
		case <-deadline:
			t.Fatal("no error event observed after failed turn")
		}
	}
}
