package cli

import (
	"fmt"

	"github.com/ferrite-io/ferrite/internal/ir"
	"github.com/ferrite-io/ferrite/internal/provider"
	"github.com/ferrite-io/ferrite/providers/aws"
	"github.com/ferrite-io/ferrite/providers/docker"
	"github.com/ferrite-io/ferrite/providers/null"
)

// newProviderRegistry returns a registry with every built-in provider
// available. Factories run lazily, so commands that never touch a provider
// (show, output, graph) pay nothing for the ones they skip.
func newProviderRegistry() *provider.Registry {
	reg := provider.NewRegistry()
	reg.RegisterFactory("null", func() (provider.Provider, error) {
		return null.New(), nil
	})
	reg.RegisterFactory("docker", func() (provider.Provider, error) {
		return docker.New(), nil
	})
	reg.RegisterFactory("aws", func() (provider.Provider, error) {
		return aws.New(), nil
	})
	return reg
}

// loadConfigProviders loads every provider the configuration references.
// Resources that do not name a provider are bound to the built-in managing
// their kind; kind names are disjoint across the built-ins, so the binding
// is unambiguous.
func loadConfigProviders(reg *provider.Registry, cfg *ir.Config) error {
	seen := make(map[string]bool)
	byKind := make(map[string]string)
	for _, res := range cfg.Resources {
		if res.Provider == "" {
			name, ok := byKind[res.Type]
			if !ok {
				p, err := providerForKind(reg, res.Type)
				if err != nil {
					return &configError{err}
				}
				name = p.Name()
				byKind[res.Type] = name
			}
			res.Provider = name
		}
		if seen[res.Provider] {
			continue
		}
		seen[res.Provider] = true
		if err := reg.LoadProvider(res.Provider); err != nil {
			return fmt.Errorf("failed to load provider %s: %w", res.Provider, err)
		}
	}
	return nil
}

// loadStateProviders loads every provider referenced by state entries.
// Needed for deletions: a resource dropped from the configuration still has
// to reach its provider.
func loadStateProviders(reg *provider.Registry, st *ir.State) error {
	seen := make(map[string]bool)
	for _, rs := range st.Resources {
		if rs.Provider == "" || seen[rs.Provider] {
			continue
		}
		seen[rs.Provider] = true
		if err := reg.LoadProvider(rs.Provider); err != nil {
			return fmt.Errorf("failed to load provider %s: %w", rs.Provider, err)
		}
	}
	return nil
}

// providerForKind finds the built-in provider that manages the given resource
// kind. Kind names are disjoint across providers, so the first match wins.
func providerForKind(reg *provider.Registry, kind string) (provider.Provider, error) {
	for _, name := range []string{"null", "docker", "aws"} {
		if err := reg.LoadProvider(name); err != nil {
			return nil, err
		}
		p, err := reg.Get(name)
		if err != nil {
			return nil, err
		}
		for _, k := range p.Kinds() {
			if k == kind {
				return p, nil
			}
		}
	}
	return nil, fmt.Errorf("no provider manages resource type %q", kind)
}
