package events

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ServerEvent is the tagged union of messages the service sends. Unknown
// discriminators decode to *RawServerEvent so callers still observe them in
// order.
type ServerEvent interface {
	Base() BaseEvent
	serverEvent()
}

type ErrorEvent struct {
	BaseEvent
	Detail ErrorDetail `json:"error"`
}

func (e *ErrorEvent) Error() string {
	return e.Detail.Error()
}

// ErrorDetail holds the service-reported error body.
type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

func (e *ErrorDetail) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type SessionCreatedEvent struct {
	BaseEvent
	Session Session `json:"session"`
}

type SessionUpdatedEvent struct {
	BaseEvent
	Session Session `json:"session"`
}

type InputAudioTranscriptionDeltaEvent struct {
	BaseEvent
	ItemID       string `json:"item_id,omitempty"`
	ContentIndex int    `json:"content_index,omitempty"`
	Delta        string `json:"delta,omitempty"`
}

type InputAudioTranscriptionCompletedEvent struct {
	BaseEvent
	ItemID       string `json:"item_id,omitempty"`
	ContentIndex int    `json:"content_index,omitempty"`
	Transcript   string `json:"transcript,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

type InputAudioTranscriptionFailedEvent struct {
	BaseEvent
	ItemID       string      `json:"item_id,omitempty"`
	ContentIndex int         `json:"content_index,omitempty"`
	Detail       ErrorDetail `json:"error"`
}

type ResponseOutputAudioDeltaEvent struct {
	BaseEvent
	ResponseID   string `json:"response_id,omitempty"`
	ItemID       string `json:"item_id,omitempty"`
	OutputIndex  int    `json:"output_index,omitempty"`
	ContentIndex int    `json:"content_index,omitempty"`
	Delta        string `json:"delta,omitempty"` // base64 audio
}

// Audio decodes the base64 delta payload.
func (e *ResponseOutputAudioDeltaEvent) Audio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(e.Delta)
}

type ResponseOutputAudioDoneEvent struct {
	BaseEvent
	ResponseID   string `json:"response_id,omitempty"`
	ItemID       string `json:"item_id,omitempty"`
	OutputIndex  int    `json:"output_index,omitempty"`
	ContentIndex int    `json:"content_index,omitempty"`
}

type ResponseOutputAudioTranscriptDeltaEvent struct {
	BaseEvent
	ResponseID   string `json:"response_id,omitempty"`
	ItemID       string `json:"item_id,omitempty"`
	OutputIndex  int    `json:"output_index,omitempty"`
	ContentIndex int    `json:"content_index,omitempty"`
	Delta        string `json:"delta,omitempty"`
}

type ResponseOutputAudioTranscriptDoneEvent struct {
	BaseEvent
	ResponseID   string `json:"response_id,omitempty"`
	ItemID       string `json:"item_id,omitempty"`
	OutputIndex  int    `json:"output_index,omitempty"`
	ContentIndex int    `json:"content_index,omitempty"`
	Transcript   string `json:"transcript,omitempty"`
}

// Response is the response resource carried by response.created and
// response.done.
type Response struct {
	ID     string             `json:"id,omitempty"`
	Object string             `json:"object,omitempty"`
	Status string             `json:"status,omitempty"`
	Output []ConversationItem `json:"output,omitempty"`
	Usage  *Usage             `json:"usage,omitempty"`
}

type ResponseCreatedEvent struct {
	BaseEvent
	Response Response `json:"response"`
}

type ResponseDoneEvent struct {
	BaseEvent
	Response Response `json:"response"`
}

type ResponseOutputItemAddedEvent struct {
	BaseEvent
	ResponseID  string           `json:"response_id,omitempty"`
	OutputIndex int              `json:"output_index,omitempty"`
	Item        ConversationItem `json:"item"`
}

type ResponseOutputItemDoneEvent struct {
	BaseEvent
	ResponseID  string           `json:"response_id,omitempty"`
	OutputIndex int              `json:"output_index,omitempty"`
	Item        ConversationItem `json:"item"`
}

type SpeechStartedEvent struct {
	BaseEvent
	ItemID       string `json:"item_id,omitempty"`
	AudioStartMs int    `json:"audio_start_ms,omitempty"`
}

type SpeechStoppedEvent struct {
	BaseEvent
	ItemID     string `json:"item_id,omitempty"`
	AudioEndMs int    `json:"audio_end_ms,omitempty"`
}

// RawServerEvent carries an event with an unrecognized type discriminator,
// payload verbatim.
type RawServerEvent struct {
	BaseEvent
	Payload json.RawMessage
}

// Usage holds the token counters attached to completed responses and
// transcriptions.
type Usage struct {
	TotalTokens        int           `json:"total_tokens,omitempty"`
	InputTokens        int           `json:"input_tokens,omitempty"`
	OutputTokens       int           `json:"output_tokens,omitempty"`
	InputTokenDetails  *TokenDetails `json:"input_token_details,omitempty"`
	OutputTokenDetails *TokenDetails `json:"output_token_details,omitempty"`
}

type TokenDetails struct {
	TextTokens   int `json:"text_tokens,omitempty"`
	AudioTokens  int `json:"audio_tokens,omitempty"`
	CachedTokens int `json:"cached_tokens,omitempty"`
}

func (*ErrorEvent) serverEvent()                              {}
func (*SessionCreatedEvent) serverEvent()                     {}
func (*SessionUpdatedEvent) serverEvent()                     {}
func (*InputAudioTranscriptionDeltaEvent) serverEvent()       {}
func (*InputAudioTranscriptionCompletedEvent) serverEvent()   {}
func (*InputAudioTranscriptionFailedEvent) serverEvent()      {}
func (*ResponseOutputAudioDeltaEvent) serverEvent()           {}
func (*ResponseOutputAudioDoneEvent) serverEvent()            {}
func (*ResponseOutputAudioTranscriptDeltaEvent) serverEvent() {}
func (*ResponseOutputAudioTranscriptDoneEvent) serverEvent()  {}
func (*ResponseCreatedEvent) serverEvent()                    {}
func (*ResponseDoneEvent) serverEvent()                       {}
func (*ResponseOutputItemAddedEvent) serverEvent()            {}
func (*ResponseOutputItemDoneEvent) serverEvent()             {}
func (*SpeechStartedEvent) serverEvent()                      {}
func (*SpeechStoppedEvent) serverEvent()                      {}
func (*RawServerEvent) serverEvent()                          {}

func parseServer[T any, P interface {
	*T
	ServerEvent
}](data []byte, eventType string) (ServerEvent, error) {
	evt, err := Parse[T](data)
	if err != nil {
		return nil, &DecodeError{Type: eventType, Err: err}
	}
	return P(evt), nil
}

// ParseServerEvent decodes one wire document into its typed event. A type
// discriminator this engine does not know yields *RawServerEvent with the
// document preserved; a malformed body for a known type yields *DecodeError.
func ParseServerEvent(data []byte) (ServerEvent, error) {
	var head BaseEvent
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &DecodeError{Type: "unknown", Err: err}
	}

	switch head.Type {
	case "error":
		return parseServer[ErrorEvent](data, head.Type)
	case "session.created":
		return parseServer[SessionCreatedEvent](data, head.Type)
	case "session.updated":
		return parseServer[SessionUpdatedEvent](data, head.Type)
	case "conversation.item.input_audio_transcription.delta":
		return parseServer[InputAudioTranscriptionDeltaEvent](data, head.Type)
	case "conversation.item.input_audio_transcription.completed":
		return parseServer[InputAudioTranscriptionCompletedEvent](data, head.Type)
	case "conversation.item.input_audio_transcription.failed":
		return parseServer[InputAudioTranscriptionFailedEvent](data, head.Type)
	case "response.output_audio.delta":
		return parseServer[ResponseOutputAudioDeltaEvent](data, head.Type)
	case "response.output_audio.done":
		return parseServer[ResponseOutputAudioDoneEvent](data, head.Type)
	case "response.output_audio_transcript.delta":
		return parseServer[ResponseOutputAudioTranscriptDeltaEvent](data, head.Type)
	case "response.output_audio_transcript.done":
		return parseServer[ResponseOutputAudioTranscriptDoneEvent](data, head.Type)
	case "response.created":
		return parseServer[ResponseCreatedEvent](data, head.Type)
	case "response.done":
		return parseServer[ResponseDoneEvent](data, head.Type)
	case "response.output_item.added":
		return parseServer[ResponseOutputItemAddedEvent](data, head.Type)
	case "response.output_item.done":
		return parseServer[ResponseOutputItemDoneEvent](data, head.Type)
	case "input_audio_buffer.speech_started":
		return parseServer[SpeechStartedEvent](data, head.Type)
	case "input_audio_buffer.speech_stopped":
		return parseServer[SpeechStoppedEvent](data, head.Type)
	default:
		return &RawServerEvent{
			BaseEvent: head,
			Payload:   append(json.RawMessage(nil), data...),
		}, nil
	}
}
