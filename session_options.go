package realtime

import (
	"github.com/voicewire/realtime-go/events"
	"github.com/voicewire/realtime-go/tool"
)

// SessionOptions is an immutable snapshot of the negotiated session state.
// Scalar fields follow the server's echo; Tools, ToolChoice and Tracing are
// client-only object references the wire format cannot round-trip, so they
// survive every reconciliation untouched.
type SessionOptions struct {
	Kind           events.SessionKind
	Model          string
	Instructions   string
	Voice          string
	Speed          float64
	InputFormat    events.AudioFormat
	OutputFormat   events.AudioFormat
	NoiseReduction string
	Transcription  *events.Transcription
	TurnDetection  *events.TurnDetection
	Modalities     []string
	MaxTokens      events.MaxTokens

	// client-only
	Tools      []tool.Tool
	ToolChoice tool.Choice
	Tracing    *string
}

// sessionUpdate renders the snapshot as the session.update wire payload.
func (o SessionOptions) sessionUpdate() events.SessionUpdate {
	upd := events.SessionUpdate{
		Type:             o.Kind,
		Model:            o.Model,
		Instructions:     o.Instructions,
		OutputModalities: o.Modalities,
		Tools:            o.Tools,
		ToolChoice:       o.ToolChoice,
		MaxOutputTokens:  o.MaxTokens,
		Tracing:          o.Tracing,
	}

	input := &events.SessionAudioInput{
		TurnDetection: o.TurnDetection,
		Transcription: o.Transcription,
	}
	if o.InputFormat.Type != "" {
		f := o.InputFormat
		input.Format = &f
	}
	if o.NoiseReduction != "" {
		input.NoiseReduction = &events.NoiseReduction{Type: o.NoiseReduction}
	}

	output := &events.SessionAudioOutput{
		Voice: o.Voice,
		Speed: o.Speed,
	}
	if o.OutputFormat.Type != "" {
		f := o.OutputFormat
		output.Format = &f
	}

	upd.Audio = &events.SessionAudio{Input: input, Output: output}
	return upd
}

// reconcileOptions merges a server-echoed session into the prior snapshot.
// The echo is the source of truth for everything it can express; the
// client-only fields are carried over so tool capabilities are not silently
// dropped after the first session.updated.
func reconcileOptions(srv *events.Session, prior SessionOptions) SessionOptions {
	next := prior

	if srv.Type != "" {
		next.Kind = srv.Type
	}
	next.Model = srv.Model
	next.Instructions = srv.Instructions
	next.Modalities = srv.OutputModalities
	if srv.MaxOutputTokens != 0 {
		next.MaxTokens = srv.MaxOutputTokens
	}

	if a := srv.Audio; a != nil {
		if in := a.Input; in != nil {
			if in.Format != nil {
				next.InputFormat = *in.Format
			}
			if in.NoiseReduction != nil {
				next.NoiseReduction = in.NoiseReduction.Type
			}
			next.Transcription = in.Transcription
			next.TurnDetection = in.TurnDetection
		}
		if out := a.Output; out != nil {
			if out.Format != nil {
				next.OutputFormat = *out.Format
			}
			next.Voice = out.Voice
			next.Speed = out.Speed
		}
	}

	// Tools, ToolChoice and Tracing stay as the client holds them.
	return next
}
