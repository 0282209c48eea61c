package workflow

import (
	"errors"
	"fmt"
	"sync"
)

// ErrContextKeyExists is returned when a node output is stored twice in one run.
var ErrContextKeyExists = errors.New("execution context key already set")

// ExecutionContext maps node id → output for a single run. Each key is
// written at most once; reads are safe from other goroutines (history,
// streaming handlers) while the run is in progress.
type ExecutionContext struct {
	mu      sync.RWMutex
	outputs map[string]any
	order   []string
}

// NewExecutionContext returns an empty context.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{outputs: make(map[string]any)}
}

// Set stores a node output. Setting an existing key fails and leaves the
// stored value untouched.
func (c *ExecutionContext) Set(nodeID string, output any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.outputs[nodeID]; exists {
		return fmt.Errorf("%w: %s", ErrContextKeyExists, nodeID)
	}
	c.outputs[nodeID] = output
	c.order = append(c.order, nodeID)
	return nil
}

// Get returns a node output. A missing key yields (nil, false).
func (c *ExecutionContext) Get(nodeID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.outputs[nodeID]
	return v, ok
}

// Has reports whether the node has produced an output.
func (c *ExecutionContext) Has(nodeID string) bool {
	_, ok := c.Get(nodeID)
	return ok
}

// Len returns the number of stored outputs.
func (c *ExecutionContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.outputs)
}

// Keys returns node ids in the order their outputs were stored.
func (c *ExecutionContext) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Snapshot returns a shallow copy of all outputs.
func (c *ExecutionContext) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]any, len(c.outputs))
	for k, v := range c.outputs {
		out[k] = v
	}
	return out
}
