package realtime

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/voicewire/realtime-go/events"
	"github.com/voicewire/realtime-go/tool"
)

const (
	ApiKeyEnvVarNameShort = "OPENAI_KEY"
	ApiKeyEnvVarNameLong  = "OPENAI_API_KEY"

	// DefaultEndpoint is the realtime websocket endpoint.
	DefaultEndpoint = "wss://api.openai.com/v1/realtime"
)

type sessionConfig struct {
	endpoint  string
	apiKey    string
	logger    *slog.Logger
	latencyMS int
	// caller-side PCM rate for the AudioIO bridge
	sampleRate int

	opts SessionOptions
}

func (c *sessionConfig) latency() time.Duration {
	return time.Duration(c.latencyMS) * time.Millisecond
}

func (c *sessionConfig) validate() error {
	if c.apiKey == "" {
		return fmt.Errorf("missing api key")
	}
	if c.endpoint == "" {
		return fmt.Errorf("missing endpoint")
	}
	return nil
}

type Option func(*sessionConfig)

func WithEndpoint(url string) Option {
	return func(c *sessionConfig) {
		c.endpoint = url
	}
}

func WithKey(apiKey string) Option {
	return func(c *sessionConfig) {
		c.apiKey = apiKey
	}
}

func WithEnvKey(vars ...string) Option {
	return func(c *sessionConfig) {
		for _, envVarName := range vars {
			if k := os.Getenv(envVarName); k != "" {
				c.apiKey = k
				return
			}
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *sessionConfig) {
		c.logger = logger
	}
}

func WithDefaultLogger() Option {
	return WithLogger(slog.Default())
}

func WithModel(model string) Option {
	return func(c *sessionConfig) {
		c.opts.Model = model
	}
}

func WithSessionKind(kind events.SessionKind) Option {
	return func(c *sessionConfig) {
		c.opts.Kind = kind
	}
}

func WithInstruction(instruction string) Option {
	return func(c *sessionConfig) {
		c.opts.Instructions = instruction
	}
}

func WithVoice(voice string) Option {
	return func(c *sessionConfig) {
		c.opts.Voice = voice
	}
}

func WithSpeed(speed float64) Option {
	return func(c *sessionConfig) {
		c.opts.Speed = speed
	}
}

func WithInputFormat(f events.AudioFormat) Option {
	return func(c *sessionConfig) {
		c.opts.InputFormat = f
	}
}

func WithOutputFormat(f events.AudioFormat) Option {
	return func(c *sessionConfig) {
		c.opts.OutputFormat = f
	}
}

func WithNoiseReduction(mode string) Option {
	return func(c *sessionConfig) {
		c.opts.NoiseReduction = mode
	}
}

func WithTranscription(t events.Transcription) Option {
	return func(c *sessionConfig) {
		c.opts.Transcription = &t
	}
}

func WithTurnDetection(td events.TurnDetection) Option {
	return func(c *sessionConfig) {
		c.opts.TurnDetection = &td
	}
}

func WithModalities(modalities ...string) Option {
	return func(c *sessionConfig) {
		c.opts.Modalities = modalities
	}
}

func WithMaxTokens(n events.MaxTokens) Option {
	return func(c *sessionConfig) {
		c.opts.MaxTokens = n
	}
}

func WithTools(tools ...tool.Tool) Option {
	return func(c *sessionConfig) {
		c.opts.Tools = tools
	}
}

func WithToolChoice(choice tool.Choice) Option {
	return func(c *sessionConfig) {
		c.opts.ToolChoice = choice
	}
}

func WithTracing(tracing string) Option {
	return func(c *sessionConfig) {
		c.opts.Tracing = &tracing
	}
}

func WithSampleRate(sr int) Option {
	return func(c *sessionConfig) {
		c.sampleRate = sr
	}
}

// WithLatency sets the capture chunking latency in milliseconds.
func WithLatency(latencyMS int) Option {
	return func(c *sessionConfig) {
		c.latencyMS = latencyMS
	}
}

func WithOptions(opts ...Option) Option {
	return func(c *sessionConfig) {
		for _, opt := range opts {
			opt(c)
		}
	}
}

func boolPtr(b bool) *bool { return &b }

func withDefaults() Option {
	return WithOptions(
		WithLogger(slog.New(slog.DiscardHandler)),
		WithEndpoint(DefaultEndpoint),
		WithSessionKind(events.SessionKindRealtime),
		WithModel("gpt-realtime"),
		WithVoice("coral"),
		WithSpeed(1.0),
		WithInstruction("You are a helpful voice agent."),
		WithModalities("audio"),
		WithInputFormat(events.AudioFormat{Type: events.FormatPCM, Rate: events.DefaultPCMRate}),
		WithOutputFormat(events.AudioFormat{Type: events.FormatPCM, Rate: events.DefaultPCMRate}),
		WithTurnDetection(events.TurnDetection{
			Type:              events.VADServer,
			CreateResponse:    boolPtr(true),
			InterruptResponse: boolPtr(true),
		}),
		WithSampleRate(events.DefaultPCMRate),
		WithLatency(200),
		WithEnvKey(ApiKeyEnvVarNameShort, ApiKeyEnvVarNameLong),
	)
}
