package interfaces

import "context"

// Tool represents a tool that can be invoked by a model
type Tool interface {
	// Name returns the name of the tool
	Name() string

	// Description returns a description of what the tool does
	Description() string

	// Parameters returns the parameters that the tool accepts
	Parameters() map[string]ParameterSpec

	// Execute executes the tool with the given JSON arguments
	Execute(ctx context.Context, args string) (string, error)
}

// ParameterSpec defines the specification for a tool parameter
type ParameterSpec struct {
	// Type is the data type of the parameter (string, number, boolean, etc.)
	Type string `json:"type"`

	// Description describes what the parameter is for
	Description string `json:"description,omitempty"`

	// Required indicates if the parameter is required
	Required bool `json:"-"`

	// Default is the default value for the parameter
	Default interface{} `json:"default,omitempty"`

	// Enum is a list of possible values for the parameter
	Enum []interface{} `json:"enum,omitempty"`

	// Items is the type of the items in the parameter
	Items *ParameterSpec `json:"items,omitempty"`
}

// ToolCall is one tool invocation as seen by the tracing layer
type ToolCall struct {
	// ID correlates the call with the model message that requested it
	ID string

	// Name of the tool being invoked
	Name string

	// Description of the tool, when known
	Description string

	// Arguments is the raw argument payload, usually JSON
	Arguments any
}

// ToolResult is the outcome of a ToolCall
type ToolResult struct {
	Output  string
	IsError bool
}
