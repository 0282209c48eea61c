package planner

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/BaSui01/flowrunner/types"
	"github.com/BaSui01/flowrunner/workflow"
	"github.com/goccy/go-json"
	"github.com/google/jsonschema-go/jsonschema"
)

//go:embed schema.json
var graphSchemaJSON []byte

var (
	schemaOnce     sync.Once
	resolvedSchema *jsonschema.Resolved
	schemaErr      error
)

// GraphSchema returns the resolved JSON Schema every plan must satisfy.
func GraphSchema() (*jsonschema.Resolved, error) {
	schemaOnce.Do(func() {
		var s jsonschema.Schema
		if err := json.Unmarshal(graphSchemaJSON, &s); err != nil {
			schemaErr = fmt.Errorf("unmarshal graph schema: %w", err)
			return
		}
		resolvedSchema, schemaErr = s.Resolve(nil)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("resolve graph schema: %w", schemaErr)
		}
	})
	return resolvedSchema, schemaErr
}

func invalidPlan(msg string, cause error) *types.Error {
	e := types.NewError(types.ErrInvalidPlan, msg).WithHTTPStatus(422)
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}

// stripCodeFences removes a surrounding ```json ... ``` block if present.
func stripCodeFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParsePlan turns raw model text into a graph. The document must be a JSON
// object carrying non-null nodes and execution_order and must match the
// graph schema. Every failure is an INVALID_PLAN *types.Error.
func ParsePlan(text string) (*workflow.Graph, error) {
	raw := stripCodeFences(text)
	if raw == "" {
		return nil, invalidPlan("empty response from model", nil)
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, invalidPlan("model response is not valid JSON", err)
	}

	obj, ok := doc.(map[string]any)
	if !ok || obj["nodes"] == nil || obj["execution_order"] == nil {
		return nil, invalidPlan("invalid workflow structure returned", nil)
	}

	schema, err := GraphSchema()
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "graph schema unavailable").WithCause(err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, invalidPlan("plan does not match workflow schema", err)
	}

	g, err := workflow.ParseGraphJSON([]byte(raw))
	if err != nil {
		return nil, invalidPlan("plan could not be decoded", err)
	}
	return g, nil
}
