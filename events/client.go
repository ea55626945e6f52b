package events

import (
	"encoding/base64"
	"encoding/json"

	"github.com/voicewire/realtime-go/tool"
)

// ClientEvent is the tagged union of messages this engine sends to the
// service.
type ClientEvent interface {
	Base() BaseEvent
	clientEvent()
}

type SessionUpdateEvent struct {
	BaseEvent
	Session SessionUpdate `json:"session"`
}

func NewSessionUpdateEvent(s SessionUpdate) SessionUpdateEvent {
	return SessionUpdateEvent{BaseEvent: NewBaseEvent("session.update"), Session: s}
}

type InputAudioBufferAppendEvent struct {
	BaseEvent
	Audio string `json:"audio"` // base64 PCM16
}

// NewInputAudioBufferAppendEvent base64-encodes raw PCM bytes.
func NewInputAudioBufferAppendEvent(pcm []byte) InputAudioBufferAppendEvent {
	return InputAudioBufferAppendEvent{
		BaseEvent: NewBaseEvent("input_audio_buffer.append"),
		Audio:     base64.StdEncoding.EncodeToString(pcm),
	}
}

// NewInputAudioBufferAppendFromURI takes the base64 payload out of a
// data:<mime>;base64,<payload> URI without re-encoding it.
func NewInputAudioBufferAppendFromURI(uri string) InputAudioBufferAppendEvent {
	return InputAudioBufferAppendEvent{
		BaseEvent: NewBaseEvent("input_audio_buffer.append"),
		Audio:     PayloadFromDataURI(uri),
	}
}

type InputAudioBufferCommitEvent struct {
	BaseEvent
}

func NewInputAudioBufferCommitEvent() InputAudioBufferCommitEvent {
	return InputAudioBufferCommitEvent{BaseEvent: NewBaseEvent("input_audio_buffer.commit")}
}

type InputAudioBufferClearEvent struct {
	BaseEvent
}

func NewInputAudioBufferClearEvent() InputAudioBufferClearEvent {
	return InputAudioBufferClearEvent{BaseEvent: NewBaseEvent("input_audio_buffer.clear")}
}

// ResponseCreatePayload is the nested "response" object of response.create.
type ResponseCreatePayload struct {
	Instructions     string        `json:"instructions,omitempty"`
	OutputModalities []string      `json:"output_modalities,omitempty"`
	Audio            *SessionAudio `json:"audio,omitempty"`
	Tools            []tool.Tool   `json:"tools,omitempty"`
	ToolChoice       tool.Choice   `json:"tool_choice,omitempty"`
	MaxOutputTokens  MaxTokens     `json:"max_output_tokens,omitempty"`
}

type ResponseCreateEvent struct {
	BaseEvent
	Response ResponseCreatePayload `json:"response"`
}

func NewResponseCreateEvent(p ResponseCreatePayload) ResponseCreateEvent {
	return ResponseCreateEvent{BaseEvent: NewBaseEvent("response.create"), Response: p}
}

type ResponseCancelEvent struct {
	BaseEvent
	ResponseID string `json:"response_id,omitempty"`
}

func NewResponseCancelEvent(responseID string) ResponseCancelEvent {
	return ResponseCancelEvent{BaseEvent: NewBaseEvent("response.cancel"), ResponseID: responseID}
}

type ConversationItemCreateEvent struct {
	BaseEvent
	PreviousItemID string           `json:"previous_item_id,omitempty"`
	Item           ConversationItem `json:"item"`
}

func NewConversationItemCreateEvent(item ConversationItem) ConversationItemCreateEvent {
	return ConversationItemCreateEvent{BaseEvent: NewBaseEvent("conversation.item.create"), Item: item}
}

// RawClientEvent sends an arbitrary, caller-built JSON document verbatim.
type RawClientEvent struct {
	Payload json.RawMessage
}

func (e RawClientEvent) Base() BaseEvent {
	var head BaseEvent
	_ = json.Unmarshal(e.Payload, &head)
	return head
}

func (e RawClientEvent) MarshalJSON() ([]byte, error) {
	return e.Payload, nil
}

func (SessionUpdateEvent) clientEvent()          {}
func (InputAudioBufferAppendEvent) clientEvent() {}
func (InputAudioBufferCommitEvent) clientEvent() {}
func (InputAudioBufferClearEvent) clientEvent()  {}
func (ResponseCreateEvent) clientEvent()         {}
func (ResponseCancelEvent) clientEvent()         {}
func (ConversationItemCreateEvent) clientEvent() {}
func (RawClientEvent) clientEvent()              {}
