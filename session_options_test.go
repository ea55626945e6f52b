package realtime

import (
	"encoding/json"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/voicewire/realtime-go/events"
	"github.com/voicewire/realtime-go/tool"
)

// echo round-trips an update payload through the wire the way the service's
// session.updated echo would: marshal the client shape, decode the server
// shape.
func echo(t interface{ Fatalf(string, ...any) }, upd events.SessionUpdate) *events.Session {
	data, err := json.Marshal(upd)
	if err != nil {
		t.Fatalf("marshal update: %v", err)
	}
	var srv events.Session
	if err := json.Unmarshal(data, &srv); err != nil {
		t.Fatalf("unmarshal echo: %v", err)
	}
	return &srv
}

func TestReconcileRoundTrip(t *testing.T) {
	voices := []string{"coral", "alloy", "marin", "cedar"}
	vadTypes := []string{events.VADServer, events.VADSemantic}
	rates := []int{16000, 24000, 48000}

	rapid.Check(t, func(t *rapid.T) {
		opts := SessionOptions{
			Kind:         events.SessionKindRealtime,
			Model:        rapid.SampledFrom([]string{"gpt-realtime", "gpt-realtime-mini"}).Draw(t, "model"),
			Instructions: rapid.StringMatching(`[a-z ]{1,40}`).Draw(t, "instructions"),
			Voice:        rapid.SampledFrom(voices).Draw(t, "voice"),
			Speed:        rapid.SampledFrom([]float64{0.5, 1.0, 1.25, 1.5}).Draw(t, "speed"),
			InputFormat:  events.AudioFormat{Type: events.FormatPCM, Rate: rapid.SampledFrom(rates).Draw(t, "inRate")},
			OutputFormat: events.AudioFormat{Type: events.FormatPCM, Rate: rapid.SampledFrom(rates).Draw(t, "outRate")},
			Modalities:   []string{"audio"},
			MaxTokens:    events.MaxTokens(rapid.IntRange(1, 8192).Draw(t, "maxTokens")),
		}

		td := events.TurnDetection{Type: rapid.SampledFrom(vadTypes).Draw(t, "vad")}
		if td.Type == events.VADServer {
			td.Threshold = rapid.SampledFrom([]float64{0.3, 0.5, 0.9}).Draw(t, "threshold")
			td.SilenceDurationMs = rapid.IntRange(100, 2000).Draw(t, "silence")
		} else {
			td.Eagerness = rapid.SampledFrom([]string{"low", "auto", "high"}).Draw(t, "eagerness")
		}
		opts.TurnDetection = &td

		next := reconcileOptions(echo(t, opts.sessionUpdate()), opts)

		require.Equal(t, opts.Kind, next.Kind)
		require.Equal(t, opts.Model, next.Model)
		require.Equal(t, opts.Instructions, next.Instructions)
		require.Equal(t, opts.Voice, next.Voice)
		require.Equal(t, opts.Speed, next.Speed)
		require.Equal(t, opts.InputFormat, next.InputFormat)
		require.Equal(t, opts.OutputFormat, next.OutputFormat)
		require.Equal(t, opts.Modalities, next.Modalities)
		require.Equal(t, opts.MaxTokens, next.MaxTokens)
		require.Equal(t, *opts.TurnDetection, *next.TurnDetection)
	})
}

func TestReconcileKeepsClientOnlyFields(t *testing.T) {
	tracing := "auto"
	tools := []tool.Tool{
		tool.Function{
			Name:       "lookup",
			Parameters: &jsonschema.Schema{Type: "object"},
		},
		tool.Remote{ServerLabel: "calendar", ServerURL: "https://mcp.example.com"},
	}
	opts := SessionOptions{
		Kind:       events.SessionKindRealtime,
		Model:      "gpt-realtime",
		Voice:      "coral",
		Tools:      tools,
		ToolChoice: tool.ChoiceRequired,
		Tracing:    &tracing,
	}

	// the echo carries tools only as raw JSON and no tracing at all
	srv := echo(t, opts.sessionUpdate())
	require.NotEmpty(t, srv.Tools)

	next := reconcileOptions(srv, opts)
	require.Equal(t, tools, next.Tools)
	require.Equal(t, tool.ChoiceRequired, next.ToolChoice)
	require.Same(t, &tracing, next.Tracing)
}

func TestReconcileServerWins(t *testing.T) {
	prior := SessionOptions{
		Model:        "gpt-realtime",
		Voice:        "coral",
		Speed:        1.0,
		InputFormat:  events.AudioFormat{Type: events.FormatPCM, Rate: 24000},
		OutputFormat: events.AudioFormat{Type: events.FormatPCM, Rate: 24000},
	}

	srv := &events.Session{
		Type:  events.SessionKindRealtime,
		Model: "gpt-realtime-mini",
		Audio: &events.SessionAudio{
			Input: &events.SessionAudioInput{
				Format: &events.AudioFormat{Type: events.FormatPCM, Rate: 16000},
			},
			Output: &events.SessionAudioOutput{
				Voice: "marin",
				Speed: 1.5,
			},
		},
	}

	next := reconcileOptions(srv, prior)
	require.Equal(t, "gpt-realtime-mini", next.Model)
	require.Equal(t, 16000, next.InputFormat.Rate)
	require.Equal(t, "marin", next.Voice)
	require.Equal(t, 1.5, next.Speed)
	// the echo's output block omitted the format, so the prior one stands
	require.Equal(t, 24000, next.OutputFormat.Rate)
}

func TestDefaultsApplied(t *testing.T) {
	s := New(WithKey("sk-test"))
	opts := s.Options()

	require.Equal(t, events.SessionKindRealtime, opts.Kind)
	require.Equal(t, "gpt-realtime", opts.Model)
	require.Equal(t, "coral", opts.Voice)
	require.Equal(t, events.FormatPCM, opts.InputFormat.Type)
	require.Equal(t, 24000, opts.InputFormat.Rate)
	require.NotNil(t, opts.TurnDetection)
	require.Equal(t, events.VADServer, opts.TurnDetection.Type)
	require.NotNil(t, opts.TurnDetection.CreateResponse)
	require.True(t, *opts.TurnDetection.CreateResponse)
}
