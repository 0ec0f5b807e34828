package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPopsEarliestDeadlineFirst(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	m.Push("late", now.Add(time.Hour))
	m.Push("early", now.Add(time.Minute))
	m.Push("mid", now.Add(time.Hour/2))

	ctx := context.Background()
	first, ok, err := m.PopNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "early", first.Pointer)

	second, _, _ := m.PopNext(ctx)
	assert.Equal(t, "mid", second.Pointer)

	third, _, _ := m.PopNext(ctx)
	assert.Equal(t, "late", third.Pointer)
}

func TestMemoryPopNextEmpty(t *testing.T) {
	m := NewMemory()
	_, ok, err := m.PopNext(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLen(t *testing.T) {
	m := NewMemory()
	assert.Equal(t, 0, m.Len())
	m.Push("a", time.Now())
	assert.Equal(t, 1, m.Len())
	_, _, _ = m.PopNext(context.Background())
	assert.Equal(t, 0, m.Len())
}

func TestInitDefaultsToMemory(t *testing.T) {
	b, err := Init(nil)
	require.NoError(t, err)
	_, ok := b.(*Memory)
	assert.True(t, ok)
}
