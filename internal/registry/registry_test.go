package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/filescand/internal/eventsink"
	"github.com/scanforge/filescand/internal/file"
	"github.com/scanforge/filescand/internal/scanner"
)

type stubScanner struct {
	name        string
	constructed int
	initialized int
}

func (s *stubScanner) Name() string { return s.name }
func (s *stubScanner) Scan(_ context.Context, _ *scanner.Invocation, _ []byte, _ *file.File, _ map[string]any) error {
	return nil
}
func (s *stubScanner) Init(_ map[string]any) error {
	s.initialized++
	return nil
}

func TestResolveConstructsOnceAndCaches(t *testing.T) {
	count := 0
	var inst *stubScanner
	r := New(eventsink.NewMemory())
	r.Register("ScanStrings", func(cfg map[string]any, sink eventsink.Backend) (scanner.Scanner, error) {
		count++
		inst = &stubScanner{name: "ScanStrings"}
		return inst, nil
	}, nil)

	s1, ok := r.Resolve("ScanStrings")
	require.True(t, ok)
	s2, ok := r.Resolve("ScanStrings")
	require.True(t, ok)

	assert.Same(t, s1, s2)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, inst.initialized)
}

func TestResolveMissingScannerIsNotFatal(t *testing.T) {
	r := New(eventsink.NewMemory())
	_, ok := r.Resolve("ScanNoSuchThing")
	assert.False(t, ok)
}

func TestResolveConstructorFailureSkips(t *testing.T) {
	r := New(eventsink.NewMemory())
	r.Register("ScanBroken", func(cfg map[string]any, sink eventsink.Backend) (scanner.Scanner, error) {
		return nil, errors.New("boom")
	}, nil)
	_, ok := r.Resolve("ScanBroken")
	assert.False(t, ok)
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	r := New(eventsink.NewMemory())
	factory := func(cfg map[string]any, sink eventsink.Backend) (scanner.Scanner, error) {
		return &stubScanner{name: "x"}, nil
	}
	r.MustRegister("ScanX", factory, nil)
	assert.Panics(t, func() {
		r.MustRegister("ScanX", factory, nil)
	})
}
