package workflow

// Node is one typed action in a workflow graph.
type Node struct {
	ID        string         `json:"id" yaml:"id"`
	Action    string         `json:"action" yaml:"action"`
	Params    map[string]any `json:"params" yaml:"params"`
	DependsOn []string       `json:"depends_on" yaml:"depends_on"`
}

// Graph is an immutable plan: the nodes plus the order they run in.
type Graph struct {
	WorkflowName   string   `json:"workflow_name" yaml:"workflow_name"`
	Nodes          []Node   `json:"nodes" yaml:"nodes"`
	ExecutionOrder []string `json:"execution_order" yaml:"execution_order"`
}

// NodeByID returns the first node with the given id.
func (g *Graph) NodeByID(id string) (*Node, bool) {
	if g == nil {
		return nil, false
	}
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// index 建立 id → node 的索引；重复 id 时保留第一个（与 NodeByID 一致）
func (g *Graph) index() map[string]*Node {
	idx := make(map[string]*Node, len(g.Nodes))
	for i := range g.Nodes {
		if _, exists := idx[g.Nodes[i].ID]; !exists {
			idx[g.Nodes[i].ID] = &g.Nodes[i]
		}
	}
	return idx
}

// Clone returns a deep copy of the graph structure. Param values are copied
// one level deep.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := &Graph{
		WorkflowName:   g.WorkflowName,
		Nodes:          make([]Node, len(g.Nodes)),
		ExecutionOrder: append([]string(nil), g.ExecutionOrder...),
	}
	for i, n := range g.Nodes {
		params := make(map[string]any, len(n.Params))
		for k, v := range n.Params {
			params[k] = v
		}
		out.Nodes[i] = Node{
			ID:        n.ID,
			Action:    n.Action,
			Params:    params,
			DependsOn: append([]string(nil), n.DependsOn...),
		}
	}
	return out
}
