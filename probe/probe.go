// Package probe samples system and user-declared data points for the
// telemetry payload. Built-in probes cover CPU, memory, storage and
// network via gopsutil; custom probes read files, run commands or read
// environment variables, shaped by a small declared transform set.
package probe

import (
	"context"
	"fmt"
	"sync"
)

// Kind identifies how a probe obtains its value
type Kind string

const (
	KindFile    Kind = "file"
	KindCommand Kind = "command"
	KindEnv     Kind = "env"
)

// Value is one sampled data point
type Value struct {
	Data any
	Unit string
	Kind Kind
}

// Probe is a named sampler. Sample errors are reported per probe and
// never abort a collection cycle.
type Probe interface {
	Name() string
	Kind() Kind
	Sample(ctx context.Context) (Value, error)
}

// Registry holds custom probes in declaration order
type Registry struct {
	mu     sync.RWMutex
	order  []Probe
	byName map[string]Probe
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Probe),
	}
}

// Register adds a probe. Names are unique.
func (r *Registry) Register(p Probe) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[p.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProbe, p.Name())
	}

	r.byName[p.Name()] = p
	r.order = append(r.order, p)
	return nil
}

// Probes returns the registered probes in declaration order
func (r *Registry) Probes() []Probe {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Probe, len(r.order))
	copy(out, r.order)
	return out
}

// Get looks a probe up by name
func (r *Registry) Get(name string) (Probe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byName[name]
	return p, ok
}

// Len returns the number of registered probes
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
