package framework

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Registry maps framework names to adapters. Each registered framework gets its own
// circuit breaker around detection so a tool that keeps failing is not re-run on every call.
type Registry struct {
	mu         sync.RWMutex
	frameworks map[string]*guarded
	log        *logrus.Entry
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logrus.Entry) *Registry {
	return &Registry{
		frameworks: make(map[string]*guarded),
		log:        log,
	}
}

// Register adds a framework, replacing any framework already registered under the same name.
func (r *Registry) Register(fw Framework) {
	g := &guarded{Framework: fw, cb: r.newBreaker(fw.Name())}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.frameworks[fw.Name()] = g
}

// Unregister removes a framework. Returns false if it was not registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.frameworks[name]; !ok {
		return false
	}
	delete(r.frameworks, name)
	return true
}

// Resolve returns the framework registered under name.
func (r *Registry) Resolve(name string) (Framework, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.frameworks[name]
	if !ok {
		return nil, false
	}
	return g, true
}

// ListAll returns every registered framework sorted by name.
func (r *Registry) ListAll() []Framework {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Framework, 0, len(r.frameworks))
	for _, g := range r.frameworks {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// DetectAll returns the registered frameworks that detect themselves in dirs.
// Detection errors are logged and treated as not detected.
func (r *Registry) DetectAll(ctx context.Context, dirs []string) []Framework {
	var found []Framework
	for _, fw := range r.ListAll() {
		ok, err := fw.Detect(ctx, dirs)
		if err != nil {
			r.log.WithError(err).Warnf("Detection of framework %q failed", fw.Name())
			continue
		}
		if ok {
			found = append(found, fw)
		}
	}
	return found
}

func (r *Registry) newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.log.Warnf("Detection breaker for %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Cancellation says nothing about the tool's health
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})
}

// guarded wraps a framework so detection goes through its circuit breaker.
type guarded struct {
	Framework
	cb *gobreaker.CircuitBreaker
}

func (g *guarded) Detect(ctx context.Context, dirs []string) (bool, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.Framework.Detect(ctx, dirs)
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}
