package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// charDuration is the per-character speaking estimate used for progress
const charDuration = 50 * time.Millisecond

// SpeechToText captures one spoken utterance and returns its transcript
type SpeechToText interface {
	Listen(ctx context.Context) (string, error)
}

// TextToSpeech starts speaking text. Cancelling ctx stops the speech.
type TextToSpeech interface {
	Speak(ctx context.Context, text string) (Utterance, error)
}

// Utterance is speech in progress
type Utterance interface {
	Pause() error
	Resume() error
	// Done is closed when speaking ends, normally or not
	Done() <-chan struct{}
}

// PlaybackState is the state of a spoken message
type PlaybackState string

const (
	PlaybackIdle    PlaybackState = "idle"
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
)

// Playback tracks speaking one message: play/pause toggling and a progress
// estimate based on text length.
type Playback struct {
	tts      TextToSpeech
	text     string
	duration time.Duration
	now      func() time.Time

	mu        sync.Mutex
	state     PlaybackState
	utterance Utterance
	cancel    context.CancelFunc
	startedAt time.Time
	pausedAt  time.Time
	paused    time.Duration
	finished  bool
	run       uint64
}

func newPlayback(tts TextToSpeech, text string, now func() time.Time) *Playback {
	return &Playback{
		tts:      tts,
		text:     text,
		duration: time.Duration(len(text)) * charDuration,
		now:      now,
		state:    PlaybackIdle,
	}
}

// Text returns the message being spoken
func (p *Playback) Text() string {
	return p.text
}

// State returns the playback state
func (p *Playback) State() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Toggle starts speaking when idle, otherwise pauses or resumes
func (p *Playback) Toggle() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case PlaybackIdle:
		return p.startLocked()
	case PlaybackPlaying:
		if err := p.utterance.Pause(); err != nil {
			return err
		}
		p.pausedAt = p.now()
		p.state = PlaybackPaused
	case PlaybackPaused:
		if err := p.utterance.Resume(); err != nil {
			return err
		}
		p.paused += p.now().Sub(p.pausedAt)
		p.state = PlaybackPlaying
	}
	return nil
}

func (p *Playback) startLocked() error {
	ctx, cancel := context.WithCancel(context.Background())
	utterance, err := p.tts.Speak(ctx, p.text)
	if err != nil {
		cancel()
		return err
	}

	p.run++
	run := p.run
	p.utterance = utterance
	p.cancel = cancel
	p.startedAt = p.now()
	p.paused = 0
	p.finished = false
	p.state = PlaybackPlaying

	go func() {
		<-utterance.Done()
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.run != run {
			return
		}
		p.finished = true
		p.state = PlaybackIdle
		p.utterance = nil
		p.cancel = nil
		cancel()
	}()
	return nil
}

// Progress estimates how much has been spoken, 0 to 100. Paused time does not count.
func (p *Playback) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		return 100
	}
	if p.utterance == nil || p.duration <= 0 {
		return 0
	}
	end := p.now()
	if p.state == PlaybackPaused {
		end = p.pausedAt
	}
	elapsed := end.Sub(p.startedAt) - p.paused
	pct := float64(elapsed) / float64(p.duration) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Close cancels speaking and resets progress
func (p *Playback) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.run++
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = nil
	p.utterance = nil
	p.finished = false
	p.paused = 0
	p.state = PlaybackIdle
}

// CommandTTS speaks through an external program that takes the text as its
// last argument, such as espeak-ng or say
type CommandTTS struct {
	path string
	args []string
}

// ttsCandidates are tried in order by DetectTTS
var ttsCandidates = []string{"espeak-ng", "espeak", "say"}

// DetectTTS returns a speech synthesizer for command, or for the first known
// program found on PATH when command is empty
func DetectTTS(command string) (*CommandTTS, error) {
	if command != "" {
		fields := strings.Fields(command)
		path, err := exec.LookPath(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s not found", ErrCapabilityUnavailable, fields[0])
		}
		return &CommandTTS{path: path, args: fields[1:]}, nil
	}
	for _, name := range ttsCandidates {
		if path, err := exec.LookPath(name); err == nil {
			LogDebug("Using %s for speech output", path)
			return &CommandTTS{path: path}, nil
		}
	}
	return nil, fmt.Errorf("%w: no speech synthesizer found", ErrCapabilityUnavailable)
}

// Speak starts the program
func (t *CommandTTS) Speak(ctx context.Context, text string) (Utterance, error) {
	args := append(append([]string(nil), t.args...), text)
	cmd := exec.CommandContext(ctx, t.path, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", t.path, err)
	}

	u := &processUtterance{cmd: cmd, done: make(chan struct{})}
	go func() {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			LogDebug("Speech output ended with error: %v", err)
		}
		close(u.done)
	}()
	return u, nil
}

type processUtterance struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (u *processUtterance) Pause() error {
	return suspendProcess(u.cmd.Process)
}

func (u *processUtterance) Resume() error {
	return continueProcess(u.cmd.Process)
}

func (u *processUtterance) Done() <-chan struct{} {
	return u.done
}

// CommandSTT runs a configured program that records speech and prints the
// transcript on stdout
type CommandSTT struct {
	path string
	args []string
}

// DetectSTT returns a speech recognizer for command. There is no default
// recognizer, so an empty command means the capability is absent.
func DetectSTT(command string) (*CommandSTT, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no speech recognizer configured", ErrCapabilityUnavailable)
	}
	path, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrCapabilityUnavailable, fields[0])
	}
	return &CommandSTT{path: path, args: fields[1:]}, nil
}

// Listen runs the recognizer until it exits or ctx is cancelled
func (s *CommandSTT) Listen(ctx context.Context) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.path, s.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("speech recognition failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	transcript := strings.TrimSpace(stdout.String())
	if transcript == "" {
		return "", errNoSpeech
	}
	return transcript, nil
}

var errNoSpeech = errors.New("no speech detected")
