package events

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/voicewire/realtime-go/tool"
)

type SessionKind string

const (
	SessionKindRealtime      SessionKind = "realtime"
	SessionKindTranscription SessionKind = "transcription"
)

type FormatType string

const (
	FormatPCM  FormatType = "audio/pcm"
	FormatPCMU FormatType = "audio/pcmu"
	FormatPCMA FormatType = "audio/pcma"
)

// DefaultPCMRate applies when an audio/pcm format arrives without a rate.
const DefaultPCMRate = 24_000

// AudioFormat describes one direction's audio encoding. Rate is only
// meaningful for audio/pcm; the u-law and a-law formats are fixed at 8 kHz.
type AudioFormat struct {
	Type FormatType `json:"type,omitempty"`
	Rate int        `json:"rate,omitempty"`
}

// EffectiveRate resolves the sample rate, filling in the PCM default.
func (f AudioFormat) EffectiveRate() int {
	if f.Type == FormatPCM && f.Rate == 0 {
		return DefaultPCMRate
	}
	if f.Rate == 0 && f.Type != FormatPCM && f.Type != "" {
		return 8_000
	}
	return f.Rate
}

type NoiseReduction struct {
	Type string `json:"type,omitempty"` // near_field or far_field
}

type Transcription struct {
	Language string `json:"language,omitempty"`
	Model    string `json:"model,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

// VAD discriminators for TurnDetection.Type.
const (
	VADServer   = "server_vad"
	VADSemantic = "semantic_vad"
)

// TurnDetection holds the VAD configuration. The field set splits on Type:
// threshold/padding/silence/idle apply to server_vad, eagerness to
// semantic_vad, create/interrupt to both.
type TurnDetection struct {
	Type              string  `json:"type,omitempty"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
	IdleTimeoutMs     int     `json:"idle_timeout_ms,omitempty"`
	Eagerness         string  `json:"eagerness,omitempty"`
	CreateResponse    *bool   `json:"create_response,omitempty"`
	InterruptResponse *bool   `json:"interrupt_response,omitempty"`
}

type SessionAudioInput struct {
	Format         *AudioFormat    `json:"format,omitempty"`
	NoiseReduction *NoiseReduction `json:"noise_reduction,omitempty"`
	Transcription  *Transcription  `json:"transcription,omitempty"`
	TurnDetection  *TurnDetection  `json:"turn_detection,omitempty"`
}

type SessionAudioOutput struct {
	Format *AudioFormat `json:"format,omitempty"`
	Voice  string       `json:"voice,omitempty"`
	Speed  float64      `json:"speed,omitempty"`
}

type SessionAudio struct {
	Input  *SessionAudioInput  `json:"input,omitempty"`
	Output *SessionAudioOutput `json:"output,omitempty"`
}

// MaxTokens is a token limit that the service serializes either as an
// integer or as the sentinel string "inf".
type MaxTokens int

// MaxTokensInf is the decoded form of the "inf" sentinel.
const MaxTokensInf MaxTokens = math.MaxInt

func (m MaxTokens) MarshalJSON() ([]byte, error) {
	if m == MaxTokensInf {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(int(m))
}

func (m *MaxTokens) UnmarshalJSON(data []byte) error {
	if string(data) == `"inf"` {
		*m = MaxTokensInf
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("max_output_tokens: %w", err)
	}
	*m = MaxTokens(n)
	return nil
}

// Session is the server-echoed session resource carried by session.created
// and session.updated. Tools arrive untyped; the client-held tool objects are
// authoritative and the echo is never promoted back into typed tools.
type Session struct {
	ID               string          `json:"id,omitempty"`
	Object           string          `json:"object,omitempty"`
	Type             SessionKind     `json:"type,omitempty"`
	Model            string          `json:"model,omitempty"`
	ExpiresAt        int64           `json:"expires_at,omitempty"`
	Instructions     string          `json:"instructions,omitempty"`
	Audio            *SessionAudio   `json:"audio,omitempty"`
	OutputModalities []string        `json:"output_modalities,omitempty"`
	Tools            json.RawMessage `json:"tools,omitempty"`
	ToolChoice       string          `json:"tool_choice,omitempty"`
	MaxOutputTokens  MaxTokens       `json:"max_output_tokens,omitempty"`
	Tracing          json.RawMessage `json:"tracing,omitempty"`
}

// SessionUpdate is the client-side session payload for session.update.
type SessionUpdate struct {
	Type             SessionKind   `json:"type,omitempty"`
	Model            string        `json:"model,omitempty"`
	Instructions     string        `json:"instructions,omitempty"`
	Audio            *SessionAudio `json:"audio,omitempty"`
	OutputModalities []string      `json:"output_modalities,omitempty"`
	Tools            []tool.Tool   `json:"tools,omitempty"`
	ToolChoice       tool.Choice   `json:"tool_choice,omitempty"`
	MaxOutputTokens  MaxTokens     `json:"max_output_tokens,omitempty"`
	Tracing          *string       `json:"tracing,omitempty"`
}
