package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"
)

// ParseGraphJSON decodes a graph from its JSON wire form.
func ParseGraphJSON(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph from JSON: %w", err)
	}
	return &g, nil
}

// ParseGraphYAML decodes a graph from YAML using the same field names as JSON.
func ParseGraphYAML(data []byte) (*Graph, error) {
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph from YAML: %w", err)
	}
	// yaml 会把嵌套 map 解成 map[string]any，这里统一为 JSON 语义
	for i := range g.Nodes {
		if g.Nodes[i].Params == nil {
			continue
		}
		normalized, err := normalizeParams(g.Nodes[i].Params)
		if err != nil {
			return nil, fmt.Errorf("node %q params: %w", g.Nodes[i].ID, err)
		}
		g.Nodes[i].Params = normalized
	}
	return &g, nil
}

type hclGraph struct {
	WorkflowName   string    `hcl:"workflow_name,optional"`
	ExecutionOrder []string  `hcl:"execution_order,optional"`
	Nodes          []hclNode `hcl:"node,block"`
}

type hclNode struct {
	ID        string    `hcl:"id,label"`
	Action    string    `hcl:"action"`
	Params    cty.Value `hcl:"params,optional"`
	DependsOn []string  `hcl:"depends_on,optional"`
}

// ParseGraphHCL decodes a graph written as HCL:
//
//	workflow_name   = "Daily TechCrunch Summary"
//	execution_order = ["trigger_1", "scraper_1"]
//
//	node "trigger_1" {
//	  action = "scheduler"
//	  params = { cron = "0 8 * * *" }
//	}
//
// When execution_order is omitted the block declaration order is used.
// filename must end in .hcl (or .hcl.json for the JSON variant).
func ParseGraphHCL(filename string, src []byte) (*Graph, error) {
	var raw hclGraph
	if err := hclsimple.Decode(filename, src, nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode graph from HCL: %w", err)
	}

	g := &Graph{
		WorkflowName:   raw.WorkflowName,
		Nodes:          make([]Node, 0, len(raw.Nodes)),
		ExecutionOrder: raw.ExecutionOrder,
	}
	for _, n := range raw.Nodes {
		params, err := ctyToParams(n.Params)
		if err != nil {
			return nil, fmt.Errorf("node %q params: %w", n.ID, err)
		}
		g.Nodes = append(g.Nodes, Node{
			ID:        n.ID,
			Action:    n.Action,
			Params:    params,
			DependsOn: n.DependsOn,
		})
	}
	if len(g.ExecutionOrder) == 0 {
		for _, n := range g.Nodes {
			g.ExecutionOrder = append(g.ExecutionOrder, n.ID)
		}
	}
	return g, nil
}

func ctyToParams(v cty.Value) (map[string]any, error) {
	if v.IsNull() {
		return map[string]any{}, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("params must be fully known")
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("params must be an object, got %s", ty.FriendlyName())
	}
	data, err := ctyjson.SimpleJSONValue{Value: v}.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, err
	}
	return params, nil
}

func normalizeParams(in map[string]any) (map[string]any, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadGraphFile reads a graph file; the format follows the extension
// (.json, .yaml/.yml, .hcl).
func LoadGraphFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if strings.HasSuffix(strings.ToLower(path), ".hcl.json") {
			return ParseGraphHCL(path, data)
		}
		return ParseGraphJSON(data)
	case ".yaml", ".yml":
		return ParseGraphYAML(data)
	case ".hcl":
		return ParseGraphHCL(path, data)
	default:
		return nil, fmt.Errorf("unsupported graph file extension %q", ext)
	}
}

// ToJSON converts the graph to indented JSON.
func (g *Graph) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph to JSON: %w", err)
	}
	return data, nil
}

// ToYAML converts the graph to YAML.
func (g *Graph) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph to YAML: %w", err)
	}
	return data, nil
}
