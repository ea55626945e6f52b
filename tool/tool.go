// Package tool declares the capability objects a session can expose to the
// model: locally executed function tools and hosted MCP servers. The union is
// explicit; nothing is inferred from object shape at encode time.
package tool

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

type Choice string

const (
	ChoiceAuto     Choice = "auto"
	ChoiceNone     Choice = "none"
	ChoiceRequired Choice = "required"
)

// Tool is either a Function or a Remote. The marker method seals the union.
type Tool interface {
	json.Marshaler
	isTool()
}

// Function is a locally executed tool the model can call. Parameters is the
// JSON Schema of the arguments object.
type Function struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

func (Function) isTool() {}

func (f Function) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string             `json:"type"`
		Name        string             `json:"name"`
		Description string             `json:"description,omitempty"`
		Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	}{
		Type:        "function",
		Name:        f.Name,
		Description: f.Description,
		Parameters:  f.Parameters,
	})
}

// Remote is a hosted MCP server the service connects to on the session's
// behalf. Optional fields are copied to the wire only when set, never
// defaulted.
type Remote struct {
	ServerLabel       string
	ServerURL         string
	ConnectorID       string
	Authorization     string
	Headers           map[string]string
	RequireApproval   string
	ServerDescription string
	AllowedTools      []string
}

func (Remote) isTool() {}

func (r Remote) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type              string            `json:"type"`
		ServerLabel       string            `json:"server_label"`
		ServerURL         string            `json:"server_url,omitempty"`
		ConnectorID       string            `json:"connector_id,omitempty"`
		Authorization     string            `json:"authorization,omitempty"`
		Headers           map[string]string `json:"headers,omitempty"`
		RequireApproval   string            `json:"require_approval,omitempty"`
		ServerDescription string            `json:"server_description,omitempty"`
		AllowedTools      []string          `json:"allowed_tools,omitempty"`
	}{
		Type:              "mcp",
		ServerLabel:       r.ServerLabel,
		ServerURL:         r.ServerURL,
		ConnectorID:       r.ConnectorID,
		Authorization:     r.Authorization,
		Headers:           r.Headers,
		RequireApproval:   r.RequireApproval,
		ServerDescription: r.ServerDescription,
		AllowedTools:      r.AllowedTools,
	})
}
