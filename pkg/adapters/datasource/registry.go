package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// AdapterInfo describes a registered adapter.
type AdapterInfo struct {
	Type        string `json:"type"`         // "mssql", "postgres", "sqlite"
	DisplayName string `json:"display_name"` // "Microsoft SQL Server", "PostgreSQL"
	Description string `json:"description"`
}

// Factory opens a datasource from a generic config map.
type Factory func(ctx context.Context, config map[string]any, logger *zap.Logger) (Datasource, error)

// AdapterRegistration contains info + factory for creating adapters.
type AdapterRegistration struct {
	Info    AdapterInfo
	Factory Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetFactory returns the factory for a datasource type.
// Returns nil if type is not registered.
func GetFactory(dsType string) Factory {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.Factory
	}
	return nil
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}

// Open creates a datasource of the given registered type.
func Open(ctx context.Context, dsType string, config map[string]any, logger *zap.Logger) (Datasource, error) {
	factory := GetFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("datasource type %q is not registered", dsType)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return factory(ctx, config, logger)
}
