package tools

import (
	"context"

	"github.com/invopop/jsonschema"
)

// RunFunc executes the tool. Arguments arrive as the decoded JSON object
// matching the definition's parameter schema.
type RunFunc func(ctx context.Context, args map[string]any) (any, error)

// Definition describes an external capability the deliberation engine can
// invoke. Parameters documents the argument shape for provider-side
// function calling and for operators listing the registry.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	Run         RunFunc            `json:"-"`
}

// SchemaFor reflects a parameter schema from an example argument struct.
func SchemaFor(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	return reflector.Reflect(v)
}
