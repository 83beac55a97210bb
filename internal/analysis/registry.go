package analysis

import (
	"fmt"
	"sort"
)

// Registry is the static table of modules keyed by name.
type Registry struct {
	modules map[string]Module
	order   []string
}

// NewRegistry returns a registry holding the given modules. Registering the
// same name twice is an error.
func NewRegistry(modules ...Module) (*Registry, error) {
	r := &Registry{modules: make(map[string]Module, len(modules))}
	for _, m := range modules {
		if _, dup := r.modules[m.Name()]; dup {
			return nil, fmt.Errorf("NewRegistry: duplicate module %q", m.Name())
		}
		r.modules[m.Name()] = m
		r.order = append(r.order, m.Name())
	}
	return r, nil
}

// DefaultRegistry returns the eight built-in modules.
func DefaultRegistry(opts Options) *Registry {
	opts = opts.withDefaults()
	r, _ := NewRegistry(
		NewTransactionModule(opts),
		NewBudgetModule(opts),
		NewInvestmentModule(),
		NewGoalModule(opts),
		NewInsightsModule(opts),
		NewPlannerModule(opts),
		NewRiskModule(opts),
		NewMarketModule(opts),
	)
	return r
}

// Get looks up a module by name.
func (r *Registry) Get(name string) (Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// Names returns module names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Info describes a module for catalogue listings.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Catalogue lists every module sorted by name.
func (r *Registry) Catalogue() []Info {
	out := make([]Info, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, Info{Name: m.Name(), Description: m.Description()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
