package workflow

// ResolveInput computes a node's input from the outputs of its dependencies:
//
//	no dependencies  → nil
//	one dependency   → that output, unwrapped
//	several          → []any of outputs in depends_on order
//
// A dependency without a stored output contributes nil.
func ResolveInput(node *Node, ec *ExecutionContext) any {
	if node == nil || len(node.DependsOn) == 0 {
		return nil
	}
	if len(node.DependsOn) == 1 {
		v, _ := ec.Get(node.DependsOn[0])
		return v
	}

	outputs := make([]any, len(node.DependsOn))
	for i, dep := range node.DependsOn {
		outputs[i], _ = ec.Get(dep)
	}
	return outputs
}
