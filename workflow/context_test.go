package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionContext_WriteOnce(t *testing.T) {
	ec := NewExecutionContext()
	require.NoError(t, ec.Set("a", 1))

	err := ec.Set("a", 2)
	assert.ErrorIs(t, err, ErrContextKeyExists)

	v, ok := ec.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestExecutionContext_NilOutputIsStored(t *testing.T) {
	ec := NewExecutionContext()
	require.NoError(t, ec.Set("a", nil))
	assert.True(t, ec.Has("a"))
	assert.ErrorIs(t, ec.Set("a", "x"), ErrContextKeyExists)
}

func TestExecutionContext_SnapshotAndKeys(t *testing.T) {
	ec := NewExecutionContext()
	require.NoError(t, ec.Set("b", "B"))
	require.NoError(t, ec.Set("a", "A"))

	snap := ec.Snapshot()
	snap["c"] = "mutated"

	assert.Equal(t, 2, ec.Len())
	assert.Equal(t, []string{"b", "a"}, ec.Keys())
	assert.False(t, ec.Has("c"))
}

func TestResolveInput(t *testing.T) {
	ec := NewExecutionContext()
	require.NoError(t, ec.Set("x", []any{"one", "two"}))
	require.NoError(t, ec.Set("y", "why"))

	tests := []struct {
		name string
		deps []string
		want any
	}{
		{"no dependencies", nil, nil},
		{"single dependency is unwrapped", []string{"x"}, []any{"one", "two"}},
		{"single string dependency", []string{"y"}, "why"},
		{"several dependencies keep order", []string{"y", "x"}, []any{"why", []any{"one", "two"}}},
		{"missing dependency yields nil", []string{"nope"}, nil},
		{"missing among several", []string{"y", "nope"}, []any{"why", nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveInput(&Node{ID: "n", DependsOn: tt.deps}, ec)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveInput_SingleSliceDependencyIsNotWrapped(t *testing.T) {
	ec := NewExecutionContext()
	require.NoError(t, ec.Set("list", []string{"a"}))

	got := ResolveInput(&Node{DependsOn: []string{"list"}}, ec)
	_, isAnySlice := got.([]any)
	assert.False(t, isAnySlice)
	assert.Equal(t, []string{"a"}, got)
}
