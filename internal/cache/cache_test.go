package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nodeloom/core/internal/ids"
)

func TestPutGetRoundTrip(t *testing.T) {
	m := New()
	defer m.Close()
	m.RegisterCache("shaders")

	m.Put("shaders", ids.NodeID(1), "compiled-spirv")

	v, ok := m.Get("shaders", ids.NodeID(1))
	assert.True(t, ok)
	assert.Equal(t, "compiled-spirv", v)
}

func TestGetOnUnregisteredCacheMisses(t *testing.T) {
	m := New()
	defer m.Close()
	_, ok := m.Get("nonexistent", ids.NodeID(1))
	assert.False(t, ok)
}

func TestPutOnUnregisteredCacheIsNoop(t *testing.T) {
	m := New()
	defer m.Close()
	m.Put("nonexistent", ids.NodeID(1), "value")
	_, ok := m.Get("nonexistent", ids.NodeID(1))
	assert.False(t, ok)
}

func TestInvalidateNodeEvictsFromEveryCache(t *testing.T) {
	m := New()
	defer m.Close()
	m.RegisterCache("shaders")
	m.RegisterCache("images")
	m.PutNoExpire("shaders", ids.NodeID(1), "a")
	m.PutNoExpire("images", ids.NodeID(1), "b")

	m.InvalidateNode(ids.NodeID(1))

	_, ok1 := m.Get("shaders", ids.NodeID(1))
	_, ok2 := m.Get("images", ids.NodeID(1))
	assert.False(t, ok1)
	assert.False(t, ok2)
}

func TestClearEmptiesNamedCacheOnly(t *testing.T) {
	m := New()
	defer m.Close()
	m.RegisterCache("a")
	m.RegisterCache("b")
	m.PutNoExpire("a", ids.NodeID(1), 1)
	m.PutNoExpire("b", ids.NodeID(1), 2)

	m.Clear("a")

	_, ok := m.Get("a", ids.NodeID(1))
	assert.False(t, ok)
	v, ok := m.Get("b", ids.NodeID(1))
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestRegisterCacheTwiceReplaces(t *testing.T) {
	m := New()
	defer m.Close()
	m.RegisterCache("shaders")
	m.PutNoExpire("shaders", ids.NodeID(1), "old")
	m.RegisterCache("shaders")
	_, ok := m.Get("shaders", ids.NodeID(1))
	assert.False(t, ok)
}
