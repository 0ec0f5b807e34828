package blobstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAppendDrainFIFO(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	deadline := time.Now().Add(time.Minute)

	require.NoError(t, m.Append(ctx, "p1", []byte("hel"), deadline))
	require.NoError(t, m.Append(ctx, "p1", []byte("lo"), deadline))

	out, err := m.Drain(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestMemoryDrainIsDestructive(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Append(ctx, "p1", []byte("x"), time.Now().Add(time.Minute)))

	first, err := m.Drain(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "x", string(first))

	second, err := m.Drain(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestMemoryDrainUnknownPointer(t *testing.T) {
	m := NewMemory()
	out, err := m.Drain(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestMemorySweepRemovesExpired(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	require.NoError(t, m.Append(ctx, "expired", []byte("x"), past))
	require.NoError(t, m.Append(ctx, "fresh", []byte("y"), future))

	removed := m.Sweep(time.Now())
	assert.Equal(t, 1, removed)

	_, ok := m.entries["fresh"]
	assert.True(t, ok)
}

func TestInitDefaultsToMemory(t *testing.T) {
	b, err := Init(nil)
	require.NoError(t, err)
	_, ok := b.(*Memory)
	assert.True(t, ok)
}

func TestInitUnknownKind(t *testing.T) {
	_, err := Init([]byte(`{"kind":"bogus"}`))
	assert.Error(t, err)
}
