package workflow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// linearGraph builds n0 -> n1 -> ... -> n(n-1); every node runs "echo".
func linearGraph(n int) *Graph {
	g := &Graph{WorkflowName: "linear"}
	for i := 0; i < n; i++ {
		node := Node{ID: fmt.Sprintf("n%d", i), Action: "echo", Params: map[string]any{"i": i}}
		if i > 0 {
			node.DependsOn = []string{fmt.Sprintf("n%d", i-1)}
		}
		g.Nodes = append(g.Nodes, node)
		g.ExecutionOrder = append(g.ExecutionOrder, node.ID)
	}
	return g
}

// echoDispatcher returns the node's "i" param, failing at failAt (-1 = never).
func echoDispatcher(failAt int) Dispatcher {
	return DispatcherFunc(func(_ context.Context, _ string, params map[string]any, _ any) (any, error) {
		i := params["i"].(int)
		if i == failAt {
			return nil, errors.New("node failed")
		}
		return i, nil
	})
}

func TestProperty_AllSuccessEmitsRunningThenSuccess(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("every node gets running then success, in order", prop.ForAll(
		func(n int) bool {
			sink := &CollectSink{}
			result := NewExecutor(echoDispatcher(-1)).Run(context.Background(), linearGraph(n), sink)
			if result.Status != RunStatusSuccess {
				return false
			}
			logs := sink.Logs()
			if len(logs) != 2*n {
				return false
			}
			for i := 0; i < n; i++ {
				id := fmt.Sprintf("n%d", i)
				run, done := logs[2*i], logs[2*i+1]
				if run.NodeID != id || run.Status != LogStatusRunning || run.StartTime == 0 {
					return false
				}
				if done.NodeID != id || done.Status != LogStatusSuccess || done.Output != i {
					return false
				}
			}
			return len(result.Outputs) == n
		},
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}

func TestProperty_HaltsAtFailingNode(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("failure at k leaves nodes after k without logs", prop.ForAll(
		func(n, k int) bool {
			if k >= n {
				k = n - 1
			}
			sink := &CollectSink{}
			result := NewExecutor(echoDispatcher(k)).Run(context.Background(), linearGraph(n), sink)

			logs := sink.Logs()
			// k 个成功节点各 2 条，失败节点 running + error
			if len(logs) != 2*k+2 {
				return false
			}
			last := logs[len(logs)-1]
			if last.Status != LogStatusError || last.NodeID != fmt.Sprintf("n%d", k) || last.Error == "" {
				return false
			}
			for _, l := range logs {
				var idx int
				fmt.Sscanf(l.NodeID, "n%d", &idx)
				if idx > k {
					return false
				}
			}
			return result.Status == RunStatusFailed &&
				result.FailedNode == fmt.Sprintf("n%d", k) &&
				len(result.Unreached) == n-k-1 &&
				len(result.Outputs) == k
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 19),
	))

	properties.TestingRun(t)
}

func TestProperty_RunsAreRepeatable(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	type event struct {
		node   string
		status LogStatus
		output any
		err    string
	}
	trace := func(logs []ExecutionLog) []event {
		out := make([]event, len(logs))
		for i, l := range logs {
			out[i] = event{l.NodeID, l.Status, l.Output, l.Error}
		}
		return out
	}

	properties.Property("same graph and pure handlers give identical status/output sequences", prop.ForAll(
		func(n, failAt int) bool {
			g := linearGraph(n)
			exec := NewExecutor(echoDispatcher(failAt))

			first, second := &CollectSink{}, &CollectSink{}
			exec.Run(context.Background(), g, first)
			exec.Run(context.Background(), g, second)
			return reflect.DeepEqual(trace(first.Logs()), trace(second.Logs()))
		},
		gen.IntRange(0, 15),
		gen.IntRange(-1, 15),
	))

	properties.TestingRun(t)
}

func TestProperty_ResolverShape(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("resolver returns nil, the value, or a slice of len(depends_on)", prop.ForAll(
		func(deps int) bool {
			ec := NewExecutionContext()
			node := &Node{ID: "target"}
			for i := 0; i < deps; i++ {
				id := fmt.Sprintf("d%d", i)
				_ = ec.Set(id, i*10)
				node.DependsOn = append(node.DependsOn, id)
			}

			got := ResolveInput(node, ec)
			switch deps {
			case 0:
				return got == nil
			case 1:
				return got == 0
			default:
				list, ok := got.([]any)
				if !ok || len(list) != deps {
					return false
				}
				for i, v := range list {
					if v != i*10 {
						return false
					}
				}
				return true
			}
		},
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
