package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

type countingRecorder struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (r *countingRecorder) RecordCacheLookup(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	config := Config{
		Addr:       mr.Addr(),
		KeyPrefix:  "test:",
		DefaultTTL: 1 * time.Minute,
	}

	manager, err := NewManager(config, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestManager_SetAndGet(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "test-key", "test-value", time.Minute))

	value, err := manager.Get(ctx, "test-key")
	require.NoError(t, err)
	assert.Equal(t, "test-value", value)

	// 前缀生效
	assert.True(t, mr.Exists("test:test-key"))
}

func TestManager_GetNonExistent(t *testing.T) {
	_, manager := setupTestRedis(t)

	value, err := manager.Get(context.Background(), "non-existent")
	assert.True(t, IsCacheMiss(err))
	assert.Equal(t, "", value)
}

func TestManager_DefaultTTL(t *testing.T) {
	mr, manager := setupTestRedis(t)

	require.NoError(t, manager.Set(context.Background(), "k", "v", 0))
	assert.Equal(t, time.Minute, mr.TTL("test:k"))
}

func TestManager_Delete(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "test-key", "test-value", time.Minute))
	require.NoError(t, manager.Delete(ctx, "test-key"))
	require.NoError(t, manager.Delete(ctx))

	_, err := manager.Get(ctx, "test-key")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_JSON(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	require.NoError(t, manager.SetJSON(ctx, "json", payload{Name: "test", Value: 123}, time.Minute))

	var got payload
	require.NoError(t, manager.GetJSON(ctx, "json", &got))
	assert.Equal(t, payload{Name: "test", Value: 123}, got)

	// 无法序列化
	assert.Error(t, manager.SetJSON(ctx, "bad", make(chan int), time.Minute))

	// 非 JSON 内容
	require.NoError(t, manager.Set(ctx, "raw", "not a json", time.Minute))
	var m map[string]any
	assert.Error(t, manager.GetJSON(ctx, "raw", &m))
}

func TestManager_TTLExpiry(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "ttl", "value", 100*time.Millisecond))
	_, err := manager.Get(ctx, "ttl")
	require.NoError(t, err)

	mr.FastForward(200 * time.Millisecond)

	_, err = manager.Get(ctx, "ttl")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_RecorderAndCounters(t *testing.T) {
	_, manager := setupTestRedis(t)
	rec := &countingRecorder{}
	manager.SetRecorder(rec)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "a", "1", time.Minute))
	_, _ = manager.Get(ctx, "a")
	_, _ = manager.Get(ctx, "a")
	_, _ = manager.Get(ctx, "missing")

	assert.Equal(t, 2, rec.hits)
	assert.Equal(t, 1, rec.misses)
	assert.Equal(t, uint64(2), manager.hits.Load())
	assert.Equal(t, uint64(1), manager.misses.Load())
}

func TestManager_ClosedRejectsOperations(t *testing.T) {
	_, manager := setupTestRedis(t)
	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	ctx := context.Background()
	_, err := manager.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, manager.Set(ctx, "k", "v", 0), ErrClosed)
	assert.ErrorIs(t, manager.Ping(ctx), ErrClosed)
}

func TestManager_ConnectFailure(t *testing.T) {
	manager, err := NewManager(Config{Addr: "127.0.0.1:1"}, zap.NewNop())
	assert.Nil(t, manager)
	assert.Error(t, err)
}

func TestManager_ConcurrentOperations(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("concurrent-%d", id)
			assert.NoError(t, manager.Set(ctx, key, "value", time.Minute))
			value, err := manager.Get(ctx, key)
			assert.NoError(t, err)
			assert.Equal(t, "value", value)
		}(i)
	}
	wg.Wait()
}

func TestParseInfo(t *testing.T) {
	info := "# Stats\r\nkeyspace_hits:12\r\nkeyspace_misses:3\r\n\r\n# Memory\r\nused_memory:1024\r\nmaxmemory:0\r\n# Clients\r\nconnected_clients:4\r\n"
	stats := parseInfo(info)

	assert.Equal(t, uint64(12), stats.ServerHits)
	assert.Equal(t, uint64(3), stats.ServerMisses)
	assert.Equal(t, int64(1024), stats.UsedMemory)
	assert.Equal(t, int64(0), stats.MaxMemory)
	assert.Equal(t, 4, stats.Connections)
}
