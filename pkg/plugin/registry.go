package plugin

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Priority constants for plugin registration.
// Higher priority values override lower priority plugins with the same name.
const (
	PriorityDefault  = 0
	PriorityOverride = 100
)

// defaultOrder is used when a plugin does not set Order
const defaultOrder = 50

// PluginInfo contains metadata about a registered plugin
type PluginInfo struct {
	Name        string
	Description string

	// Priority decides which registration wins for the same Name.
	// Equal priority lets the later registration win.
	Priority int

	Factory Factory

	// Order specifies the startup order. Lower values start first.
	Order int
}

// Registry manages plugin registration and instantiation
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]PluginInfo
	order   []string
}

// NewRegistry creates a new plugin registry
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]PluginInfo),
		order:   make([]string, 0),
	}
}

// Register adds a plugin to the registry. Registration usually runs from
// init(), before main has built a logger, so it logs through zap.L().
func (r *Registry) Register(info PluginInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}
	if info.Factory == nil {
		return fmt.Errorf("plugin %s: factory cannot be nil", info.Name)
	}
	if info.Order == 0 {
		info.Order = defaultOrder
	}

	existing, exists := r.plugins[info.Name]
	if exists && info.Priority < existing.Priority {
		zap.L().Debug("Plugin registration skipped",
			zap.String("plugin", info.Name),
			zap.Int("priority", info.Priority),
			zap.Int("existing_priority", existing.Priority))
		return nil
	}

	r.plugins[info.Name] = info
	if !exists {
		r.order = append(r.order, info.Name)
	}

	zap.L().Debug("Plugin registered",
		zap.String("plugin", info.Name),
		zap.Int("priority", info.Priority),
		zap.Int("order", info.Order),
		zap.Bool("override", exists))
	return nil
}

// Get returns the plugin info for a given name, or nil if not found
func (r *Registry) Get(name string) *PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.plugins[name]
	if !ok {
		return nil
	}
	return &info
}

// List returns all registered plugins sorted by Order, then Name
func (r *Registry) List() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]PluginInfo, 0, len(r.plugins))
	for _, name := range r.order {
		result = append(result, r.plugins[name])
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Name < result[j].Name
	})

	return result
}

// CreateAll instantiates all registered plugins in startup order. If any
// factory fails, the plugins created so far are discarded.
func (r *Registry) CreateAll(ctx *Context) ([]Plugin, error) {
	infos := r.List()
	result := make([]Plugin, 0, len(infos))

	for _, info := range infos {
		p, err := info.Factory(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create plugin %s: %w", info.Name, err)
		}
		result = append(result, p)
	}

	return result, nil
}

// Clear removes all registered plugins. Useful for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins = make(map[string]PluginInfo)
	r.order = make([]string, 0)
}

var globalRegistry = NewRegistry()

// Register adds a plugin to the global registry
func Register(info PluginInfo) error {
	return globalRegistry.Register(info)
}

// Get returns plugin info from the global registry
func Get(name string) *PluginInfo {
	return globalRegistry.Get(name)
}

// CreateAll creates all plugins from the global registry
func CreateAll(ctx *Context) ([]Plugin, error) {
	return globalRegistry.CreateAll(ctx)
}
