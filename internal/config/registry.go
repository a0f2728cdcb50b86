package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/mockmate/pkg/live"
	"github.com/MrWong99/mockmate/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned when a config names a provider no
// factory was registered for.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// factories is a name-keyed constructor table for one provider kind.
type factories[C, P any] struct {
	kind string
	m    map[string]func(C) (P, error)
}

func (f *factories[C, P]) create(name string, cfg C) (P, error) {
	build, ok := f.m[name]
	if !ok {
		var zero P
		known := "none"
		if len(f.m) > 0 {
			known = strings.Join(f.names(), ", ")
		}
		return zero, fmt.Errorf("%w: %s provider %q (registered: %s)", ErrProviderNotRegistered, f.kind, name, known)
	}
	return build(cfg)
}

func (f *factories[C, P]) names() []string {
	return slices.Sorted(maps.Keys(f.m))
}

// Registry resolves the provider names used in a [Config] to constructors.
// main registers the built-in providers; tests register fakes. Safe for
// concurrent use.
type Registry struct {
	mu   sync.RWMutex
	llm  factories[ProviderEntry, llm.Provider]
	live factories[LiveConfig, live.Dialer]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		llm:  factories[ProviderEntry, llm.Provider]{kind: "llm", m: map[string]func(ProviderEntry) (llm.Provider, error){}},
		live: factories[LiveConfig, live.Dialer]{kind: "live", m: map[string]func(LiveConfig) (live.Dialer, error){}},
	}
}

// RegisterLLM registers (or replaces) the LLM factory called name.
func (r *Registry) RegisterLLM(name string, build func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	r.llm.m[name] = build
	r.mu.Unlock()
}

// RegisterLive registers (or replaces) the live dialer factory called name.
func (r *Registry) RegisterLive(name string, build func(LiveConfig) (live.Dialer, error)) {
	r.mu.Lock()
	r.live.m[name] = build
	r.mu.Unlock()
}

// CreateLLM builds the LLM provider named by entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.create(entry.Name, entry)
}

// CreateLive builds the live dialer named by cfg.Name.
func (r *Registry) CreateLive(cfg LiveConfig) (live.Dialer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live.create(cfg.Name, cfg)
}

// LLMNames lists registered LLM providers, sorted.
func (r *Registry) LLMNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.names()
}

// LiveNames lists registered live providers, sorted.
func (r *Registry) LiveNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live.names()
}
