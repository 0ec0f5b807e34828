// Package registry implements the scanner registry (C5, §4.5):
// resolving a scanner by name to a reusable, worker-cached instance,
// via an explicit, build-time factory map rather than dynamic
// name-to-class resolution.
package registry

import (
	"fmt"
	"sync"

	"github.com/scanforge/filescand/internal/eventsink"
	"github.com/scanforge/filescand/internal/scanner"
	"github.com/scanforge/filescand/pkg/log"
)

// Factory constructs one scanner instance given its backend
// configuration and a handle to the event sink (mirroring the
// reference registry's "handle to the event sink", unused by the
// reference scanners in this repo but available to out-of-scope
// scanner implementations that need it, e.g. to stream oversized
// intermediate results directly).
type Factory func(config map[string]any, sink eventsink.Backend) (scanner.Scanner, error)

// Registry resolves scanner names to cached instances, constructing
// each lazily on first use and reusing it for the worker's lifetime,
// per §3's Scanner instance lifecycle.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	instances map[string]scanner.Scanner
	configs   map[string]map[string]any
	sink      eventsink.Backend
}

// New returns an empty Registry backed by sink.
func New(sink eventsink.Backend) *Registry {
	return &Registry{
		factories: map[string]Factory{},
		instances: map[string]scanner.Scanner{},
		configs:   map[string]map[string]any{},
		sink:      sink,
	}
}

// Register associates name with a Factory and its backend
// configuration. Call during bootstrap, before any worker goroutine
// starts resolving scanners.
func (r *Registry) Register(name string, f Factory, config map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	r.configs[name] = config
}

// Resolve returns the cached instance for name, constructing it (and
// calling Init, if the scanner implements Initializer) on first use. A
// name with no registered factory is a MissingScanner condition
// (§7): logged, and ok is false so the caller skips it without
// failing the request.
func (r *Registry) Resolve(name string) (s scanner.Scanner, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, exists := r.instances[name]; exists {
		return inst, true
	}

	factory, exists := r.factories[name]
	if !exists {
		log.Warnf("registry: scanner %q is not registered, skipping", name)
		return nil, false
	}

	inst, err := factory(r.configs[name], r.sink)
	if err != nil {
		log.Errorf("registry: constructing scanner %q failed, skipping: %v", name, err)
		return nil, false
	}
	if initializer, ok := inst.(scanner.Initializer); ok {
		if err := initializer.Init(r.configs[name]); err != nil {
			log.Errorf("registry: initializing scanner %q failed, skipping: %v", name, err)
			return nil, false
		}
	}

	r.instances[name] = inst
	return inst, true
}

// Names reports every registered scanner name, for the admin status
// surface.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// MustRegister is Register, but panics on a duplicate name — used at
// bootstrap where a name collision is a programming error, not a
// runtime condition.
func (r *Registry) MustRegister(name string, f Factory, config map[string]any) {
	r.mu.Lock()
	_, exists := r.factories[name]
	r.mu.Unlock()
	if exists {
		panic(fmt.Sprintf("registry: scanner %q already registered", name))
	}
	r.Register(name, f, config)
}
