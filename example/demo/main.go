// Command demo runs a voice agent over raw PCM16 stdio pipes. Wire it to a
// microphone and speaker with sox:
//
//	rec -t raw -r 24000 -e signed -b 16 -c 1 - |
//	  go run . |
//	  play -t raw -r 24000 -e signed -b 16 -c 1 -
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	realtime "github.com/voicewire/realtime-go"
	"github.com/voicewire/realtime-go/events"
	"github.com/voicewire/realtime-go/tool"
)

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var (
		debug       = false
		sampleRate  = 24_000
		voice       = "coral"
		instruction = "You are a helpcenter agent and help the user."
	)

	flag.StringVar(&instruction, "instruction", instruction, "instruction to send to the agent.")
	flag.StringVar(&voice, "voice", voice, "agent voice")
	flag.IntVar(&sampleRate, "sample-rate", sampleRate, "pipe sample rate")
	flag.BoolVar(&debug, "debug", false, "enable debug logs")
	flag.Parse()

	slog.SetLogLoggerLevel(slog.LevelError)
	if debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	done := make(chan struct{})

	session := realtime.New(
		realtime.WithDefaultLogger(),
		realtime.WithInstruction(instruction),
		realtime.WithVoice(voice),
		realtime.WithSampleRate(sampleRate),
		realtime.WithTranscription(events.Transcription{Model: "whisper-1"}),
		realtime.WithTools(
			tool.Function{
				Name:        "conversation_end",
				Description: "End the conversation",
				Parameters:  &jsonschema.Schema{Type: "object"},
			},
			tool.Function{
				Name:        "get_time",
				Description: "Get current time",
				Parameters:  &jsonschema.Schema{Type: "object"},
			},
		),
	)

	session.OnToolCall(func(name string, args map[string]any) (any, error) {
		switch name {
		case "get_time":
			return map[string]any{"time": time.Now().Format(time.RFC3339)}, nil
		case "conversation_end":
			close(done)
			return "OK", nil
		}

		return nil, fmt.Errorf("unknown tool: %s", name)
	})
	session.OnError(func(err error) {
		slog.Error("session error", slog.Any("error", err))
	})
	session.OnEvent(func(e events.ServerEvent) {
		switch x := e.(type) {
		case *events.ResponseOutputAudioTranscriptDoneEvent:
			fmt.Fprintln(os.Stderr, "agent>", x.Transcript)
		case *events.InputAudioTranscriptionCompletedEvent:
			fmt.Fprintln(os.Stderr, "user >", x.Transcript)
		}
	})

	must(session.Connect(ctx))
	defer session.Close(context.Background())

	speaker, mic := session.Audio()

	// mic pipe -> session
	go func() {
		_, _ = io.Copy(mic, os.Stdin)
	}()

	// session -> speaker pipe
	go func() {
		_, _ = io.Copy(os.Stdout, speaker)
	}()

	must(session.CreateResponse())

	select {
	case <-ctx.Done():
	case <-done:
	}
}
