package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noxaudit/noxaudit/internal/domain"
)

// Factory builds a provider for a model. An empty model selects the
// provider's default.
type Factory func(model string, opts Options) (domain.Provider, error)

// Registry maps provider names to factories.
type Registry struct {
	opts      Options
	factories map[string]Factory
	aliases   map[string]string
}

// NewRegistry returns a registry with the built-in providers.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		opts:      opts,
		factories: make(map[string]Factory),
		aliases:   make(map[string]string),
	}
	r.Register("anthropic", func(model string, o Options) (domain.Provider, error) {
		return NewAnthropic(model, o)
	})
	r.Register("gemini", func(model string, o Options) (domain.Provider, error) {
		return NewGemini(model, o)
	})
	r.aliases["google"] = "gemini"
	r.aliases["claude"] = "anthropic"
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[strings.ToLower(name)] = f
}

// Names lists the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve implements domain.ProviderResolver.
func (r *Registry) Resolve(name, model string) (domain.Provider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := r.aliases[key]; ok {
		key = alias
	}
	f, ok := r.factories[key]
	if !ok {
		return nil, domain.NewValidationError("resolve_provider", name,
			fmt.Errorf("unknown provider (available: %s)", strings.Join(r.Names(), ", ")))
	}
	return f(model, r.opts)
}
