package internal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	assistantGreeting   = "Hello! I'm your data engineering assistant powered by AI. How can I help you optimize your warehouse today?"
	chatErrorPrefix     = "Sorry, I encountered an error: "
	chatUnknownError    = "Unknown error"
	chatNoAnswer        = "No response generated"
	chatConnectFailure  = "Sorry, I couldn't connect to the AI service. Please make sure the backend is running."
	chatStatusSucceeded = "success"
)

// Assistant keeps a chat transcript with the analysis service and offers
// optional voice input and output
type Assistant struct {
	backend ChatBackend
	stt     SpeechToText
	tts     TextToSpeech
	now     func() time.Time

	mu         sync.Mutex
	transcript []ChatMessage
	sending    bool
	capture    *voiceCapture
}

type voiceCapture struct {
	cancel context.CancelFunc
}

// AssistantOption configures an Assistant
type AssistantOption func(*Assistant)

// WithSpeechToText enables voice input
func WithSpeechToText(stt SpeechToText) AssistantOption {
	return func(a *Assistant) {
		a.stt = stt
	}
}

// WithTextToSpeech enables reading answers aloud
func WithTextToSpeech(tts TextToSpeech) AssistantOption {
	return func(a *Assistant) {
		a.tts = tts
	}
}

// NewAssistant creates an assistant whose transcript starts with the greeting
func NewAssistant(backend ChatBackend, opts ...AssistantOption) *Assistant {
	a := &Assistant{backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	a.transcript = []ChatMessage{a.message(RoleAssistant, assistantGreeting)}
	return a
}

// Transcript returns a copy of the conversation so far
func (a *Assistant) Transcript() []ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ChatMessage(nil), a.transcript...)
}

// Busy reports whether a message is awaiting its answer
func (a *Assistant) Busy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sending
}

// Send appends text as a user message and then the assistant's answer, which
// is returned. Failures become an apologetic assistant message rather than an
// error. Blank text is ignored and yields a zero message.
func (a *Assistant) Send(ctx context.Context, text string) (ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return ChatMessage{}, nil
	}

	a.mu.Lock()
	if a.sending {
		a.mu.Unlock()
		return ChatMessage{}, ErrBusy
	}
	a.sending = true
	a.transcript = append(a.transcript, a.message(RoleUser, text))
	a.mu.Unlock()

	content := a.ask(ctx, text)

	a.mu.Lock()
	defer a.mu.Unlock()
	reply := a.message(RoleAssistant, content)
	a.transcript = append(a.transcript, reply)
	a.sending = false
	return reply, nil
}

func (a *Assistant) ask(ctx context.Context, text string) string {
	reply, err := a.backend.Chat(ctx, text)
	if err != nil {
		LogWarn("Chat request failed: %v", err)
		return chatConnectFailure
	}
	if reply.Status != chatStatusSucceeded {
		msg := reply.Message
		if msg == "" {
			msg = chatUnknownError
		}
		return chatErrorPrefix + msg
	}
	if reply.Answer == "" {
		return chatNoAnswer
	}
	return reply.Answer
}

// CanListen reports whether voice input is available
func (a *Assistant) CanListen() bool {
	return a.stt != nil
}

// CanSpeak reports whether voice output is available
func (a *Assistant) CanSpeak() bool {
	return a.tts != nil
}

// Listening reports whether a voice capture is running
func (a *Assistant) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capture != nil
}

// VoiceInput captures one utterance and returns its transcript for the caller
// to edit or send. Calling it while a capture runs stops that capture; the
// stopped call returns context.Canceled and this one returns "".
func (a *Assistant) VoiceInput(ctx context.Context) (string, error) {
	if a.stt == nil {
		return "", ErrCapabilityUnavailable
	}

	a.mu.Lock()
	if a.capture != nil {
		a.capture.cancel()
		a.capture = nil
		a.mu.Unlock()
		return "", nil
	}
	ctx, cancel := context.WithCancel(ctx)
	capture := &voiceCapture{cancel: cancel}
	a.capture = capture
	a.mu.Unlock()

	text, err := a.stt.Listen(ctx)

	a.mu.Lock()
	if a.capture == capture {
		a.capture = nil
	}
	stopped := ctx.Err() != nil
	a.mu.Unlock()
	cancel()

	if stopped {
		return "", context.Canceled
	}
	if err != nil {
		if errors.Is(err, errNoSpeech) {
			LogInfo("No speech detected. Please try again.")
		}
		return "", err
	}
	return text, nil
}

// Speak prepares text for playback. Nothing is spoken until Toggle is called.
func (a *Assistant) Speak(text string) (*Playback, error) {
	if a.tts == nil {
		return nil, ErrCapabilityUnavailable
	}
	return newPlayback(a.tts, text, a.now), nil
}

func (a *Assistant) message(role, content string) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: a.now(),
	}
}
