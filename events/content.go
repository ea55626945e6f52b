package events

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// PartKind discriminates the content part union.
type PartKind string

const (
	PartText           PartKind = "text"
	PartAudio          PartKind = "audio"
	PartImage          PartKind = "image"
	PartFunctionCall   PartKind = "function_call"
	PartFunctionResult PartKind = "function_result"
)

// ContentPart is one unit of conversational content. Exactly the fields for
// its Kind are meaningful; the rest stay zero.
type ContentPart struct {
	Kind PartKind

	// PartText
	Text string

	// PartAudio: either raw PCM bytes or a data:<mime>;base64,<payload> URI.
	AudioData  []byte
	AudioURI   string
	Transcript string

	// PartImage
	ImageURI string

	// PartFunctionCall / PartFunctionResult
	CallID    string
	Name      string
	Arguments string
	Output    string
}

// TextPart returns a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: PartText, Text: text}
}

// AudioPart returns an inline-audio part from raw PCM bytes.
func AudioPart(pcm []byte) ContentPart {
	return ContentPart{Kind: PartAudio, AudioData: pcm}
}

// AudioURIPart returns an inline-audio part from a base64 data URI.
func AudioURIPart(uri string) ContentPart {
	return ContentPart{Kind: PartAudio, AudioURI: uri}
}

// ImagePart returns an inline-image part from a data URI.
func ImagePart(uri string) ContentPart {
	return ContentPart{Kind: PartImage, ImageURI: uri}
}

// FunctionCallPart returns a function-call part. Arguments is a JSON string.
func FunctionCallPart(callID, name, arguments string) ContentPart {
	return ContentPart{Kind: PartFunctionCall, CallID: callID, Name: name, Arguments: arguments}
}

// FunctionResultPart returns a function-result part.
func FunctionResultPart(callID, output string) ContentPart {
	return ContentPart{Kind: PartFunctionResult, CallID: callID, Output: output}
}

// PayloadFromDataURI extracts the base64 payload of a
// data:<mime>;base64,<payload> URI by taking everything after the last comma.
// A string without a comma is returned as-is.
func PayloadFromDataURI(uri string) string {
	if i := strings.LastIndexByte(uri, ','); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

func (p ContentPart) audioBase64() string {
	if p.AudioURI != "" {
		return PayloadFromDataURI(p.AudioURI)
	}
	return base64.StdEncoding.EncodeToString(p.AudioData)
}

// ConversationItem is the inner "item" object of conversation.item.create
// and of response output items.
type ConversationItem struct {
	ID      string
	Role    string // user, assistant or system
	Status  string
	Content []ContentPart
}

// itemWire is the item's JSON shape for both directions.
type itemWire struct {
	ID        string     `json:"id,omitempty"`
	Type      string     `json:"type,omitempty"`
	Status    string     `json:"status,omitempty"`
	Role      string     `json:"role,omitempty"`
	Content   []partWire `json:"content,omitempty"`
	CallID    string     `json:"call_id,omitempty"`
	Name      string     `json:"name,omitempty"`
	Arguments string     `json:"arguments,omitempty"`
	Output    string     `json:"output,omitempty"`
}

type partWire struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Audio      string `json:"audio,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
}

// MarshalJSON serializes the item. A leading function-call or function-result
// part takes priority over generic message serialization: the whole item
// becomes a function_call / function_call_output item.
func (c ConversationItem) MarshalJSON() ([]byte, error) {
	if len(c.Content) > 0 {
		switch first := c.Content[0]; first.Kind {
		case PartFunctionCall:
			return json.Marshal(itemWire{
				ID:        c.ID,
				Type:      "function_call",
				CallID:    first.CallID,
				Name:      first.Name,
				Arguments: first.Arguments,
			})
		case PartFunctionResult:
			return json.Marshal(itemWire{
				ID:     c.ID,
				Type:   "function_call_output",
				CallID: first.CallID,
				Output: first.Output,
			})
		}
	}

	w := itemWire{
		ID:   c.ID,
		Type: "message",
		Role: c.Role,
	}
	for _, p := range c.Content {
		switch p.Kind {
		case PartText:
			w.Content = append(w.Content, partWire{Type: "input_text", Text: p.Text})
		case PartAudio:
			w.Content = append(w.Content, partWire{Type: "input_audio", Audio: p.audioBase64()})
		case PartImage:
			w.Content = append(w.Content, partWire{Type: "input_image", ImageURL: p.ImageURI})
		}
	}
	return json.Marshal(w)
}

func (c *ConversationItem) UnmarshalJSON(data []byte) error {
	var w itemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	c.ID = w.ID
	c.Role = w.Role
	c.Status = w.Status
	c.Content = nil

	switch w.Type {
	case "function_call":
		c.Content = []ContentPart{FunctionCallPart(w.CallID, w.Name, w.Arguments)}
		return nil
	case "function_call_output":
		c.Content = []ContentPart{FunctionResultPart(w.CallID, w.Output)}
		return nil
	}

	for _, p := range w.Content {
		switch p.Type {
		case "input_text", "text":
			c.Content = append(c.Content, TextPart(p.Text))
		case "input_audio", "audio":
			part := ContentPart{Kind: PartAudio, Transcript: p.Transcript}
			if p.Audio != "" {
				if raw, err := base64.StdEncoding.DecodeString(p.Audio); err == nil {
					part.AudioData = raw
				}
			}
			c.Content = append(c.Content, part)
		case "input_image":
			c.Content = append(c.Content, ImagePart(p.ImageURL))
		}
	}
	return nil
}
