package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/iksnae/insight-dash/internal"
	"github.com/iksnae/insight-dash/internal/export"
	"github.com/spf13/cobra"
)

var chatSpeak bool

const chatHelp = `Commands:
  /voice          capture a question by voice (Ctrl-C stops the capture)
  /speak          read the last answer aloud (Ctrl-C stops playback)
  /save [format]  export the conversation (jsonl, md, yaml, json)
  /help           show this help
  /quit           leave the chat`

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Talk to the data engineering assistant",
	Long: `Talk to the data engineering assistant about the analysed warehouse.

With a question as argument the answer is printed and the command exits.
Otherwise an interactive session starts; type /help for its commands.

Voice output uses espeak-ng, espeak or say when one is installed (or the
tts_command setting). Voice input needs an stt_command that records speech
and prints the transcript.`,
	RunE: authenticated(func(cmd *cobra.Command, args []string, app *App) error {
		assistant := newAssistant(app)
		out := cmd.OutOrStdout()
		ctx := commandContext(cmd)

		if len(args) > 0 {
			reply, err := ask(ctx, app, assistant, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, reply.Content)
			if chatSpeak {
				return speak(ctx, app, assistant, reply.Content)
			}
			return nil
		}

		r := &chatREPL{cmd: cmd, app: app, assistant: assistant, prompt: newPrompter(cmd)}
		defer r.prompt.Close()
		return r.run(ctx)
	}),
}

// newAssistant wires the speech capabilities that are available on this machine
func newAssistant(app *App) *internal.Assistant {
	var opts []internal.AssistantOption
	if tts, err := internal.DetectTTS(app.Config.TTSCommand); err == nil {
		opts = append(opts, internal.WithTextToSpeech(tts))
	} else {
		internal.LogDebug("Voice output disabled: %v", err)
	}
	if stt, err := internal.DetectSTT(app.Config.STTCommand); err == nil {
		opts = append(opts, internal.WithSpeechToText(stt))
	} else {
		internal.LogDebug("Voice input disabled: %v", err)
	}
	return internal.NewAssistant(app.Client, opts...)
}

func ask(ctx context.Context, app *App, assistant *internal.Assistant, text string) (internal.ChatMessage, error) {
	var reply internal.ChatMessage
	err := app.Printer.RunWithSpinner(ctx, "Thinking", func(ctx context.Context) error {
		ctx, cancel := app.requestContext(ctx)
		defer cancel()
		var err error
		reply, err = assistant.Send(ctx, text)
		return err
	})
	return reply, err
}

// interruptible returns a context cancelled by Ctrl-C
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}

// speak plays text, drawing a progress bar until it ends or Ctrl-C stops it
func speak(ctx context.Context, app *App, assistant *internal.Assistant, text string) error {
	playback, err := assistant.Speak(text)
	if err != nil {
		return err
	}
	defer playback.Close()

	ctx, stop := interruptible(ctx)
	defer stop()
	if err := playback.Toggle(); err != nil {
		return err
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	w := app.Printer.Err
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(w)
			return nil
		case <-ticker.C:
			fmt.Fprintf(w, "\r🔊 %s", app.Printer.ProgressBar(playback.Progress(), 30))
			if playback.State() == internal.PlaybackIdle {
				fmt.Fprintln(w)
				return nil
			}
		}
	}
}

type chatREPL struct {
	cmd       *cobra.Command
	app       *App
	assistant *internal.Assistant
	prompt    prompter
}

func (r *chatREPL) run(ctx context.Context) error {
	out := r.cmd.OutOrStdout()
	for _, msg := range r.assistant.Transcript() {
		r.printMessage(out, msg)
	}
	fmt.Fprintln(out, infoStyle.Render("Type /help for commands."))

	for {
		line, err := r.prompt.Prompt("you> ")
		if errors.Is(err, io.EOF) || errors.Is(err, errAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.prompt.AppendHistory(line)

		if strings.HasPrefix(line, "/") {
			quit, err := r.command(ctx, line)
			if err != nil {
				r.app.Printer.Error("%v", err)
			}
			if quit {
				return nil
			}
			continue
		}

		reply, err := ask(ctx, r.app, r.assistant, line)
		if err != nil {
			r.app.Printer.Error("%v", err)
			continue
		}
		r.printMessage(out, reply)
	}
}

// command runs a slash command and reports whether the session should end
func (r *chatREPL) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.cmd.OutOrStdout(), chatHelp)
	case "/voice":
		return false, r.voice(ctx)
	case "/speak":
		last := r.lastAnswer()
		if last == "" {
			return false, errors.New("nothing to read yet")
		}
		return false, speak(ctx, r.app, r.assistant, last)
	case "/save":
		format := "md"
		if len(fields) > 1 {
			format = fields[1]
		}
		path, err := saveTranscript(r.app, r.assistant.Transcript(), format, "")
		if err != nil {
			return false, err
		}
		r.app.Printer.Success("Conversation saved to %s", path)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return false, nil
}

func (r *chatREPL) voice(ctx context.Context) error {
	if !r.assistant.CanListen() {
		return errors.New("voice input is not available; set stt_command in the config")
	}
	ctx, stop := interruptible(ctx)
	defer stop()

	var text string
	err := r.app.Printer.RunWithSpinner(ctx, "Listening (Ctrl-C to stop)", func(ctx context.Context) error {
		var err error
		text, err = r.assistant.VoiceInput(ctx)
		return err
	})
	if errors.Is(err, context.Canceled) {
		r.app.Printer.Info("Voice capture stopped")
		return nil
	}
	if err != nil {
		return err
	}

	edited, err := promptDefault(r.prompt, "Send", text)
	if err != nil || edited == "" {
		return err
	}
	reply, err := ask(context.WithoutCancel(ctx), r.app, r.assistant, edited)
	if err != nil {
		return err
	}
	r.printMessage(r.cmd.OutOrStdout(), reply)
	return nil
}

func (r *chatREPL) lastAnswer() string {
	transcript := r.assistant.Transcript()
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == internal.RoleAssistant {
			return transcript[i].Content
		}
	}
	return ""
}

func (r *chatREPL) printMessage(out io.Writer, msg internal.ChatMessage) {
	label := "you"
	style := infoStyle
	if msg.Role == internal.RoleAssistant {
		label = "assistant"
		style = successStyle
	}
	if r.app.Printer.Styled {
		label = style.Render(label)
	}
	fmt.Fprintf(out, "%s %s\n%s\n\n", label, msg.Timestamp.Format("15:04"), msg.Content)
}

// saveTranscript exports messages into the archive at dir (the default archive when empty)
func saveTranscript(app *App, messages []internal.ChatMessage, format, dir string) (string, error) {
	exporter, err := export.NewExporter(format)
	if err != nil {
		return "", err
	}
	archive, err := openArchive(app, dir)
	if err != nil {
		return "", err
	}
	return archive.SaveTranscript(messages, format, exporter.Extension(), func(w io.Writer) error {
		return exporter.ExportTranscript(messages, w)
	})
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().BoolVar(&chatSpeak, "speak", false, "Read the answer aloud")
}
