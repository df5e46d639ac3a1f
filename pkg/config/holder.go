package config

import "sync/atomic"

// RegistryHolder shares a swappable analyzer registry between the API,
// which can add custom analyzers at runtime, and the pipeline. Readers
// always see a complete snapshot.
type RegistryHolder struct {
	ptr atomic.Pointer[AnalyzerRegistry]
}

func NewRegistryHolder(reg *AnalyzerRegistry) *RegistryHolder {
	h := &RegistryHolder{}
	h.ptr.Store(reg)
	return h
}

// Load returns the current registry snapshot.
func (h *RegistryHolder) Load() *AnalyzerRegistry {
	return h.ptr.Load()
}

// Get looks up a spec in the current snapshot.
func (h *RegistryHolder) Get(slug string) (AnalyzerSpec, bool) {
	return h.ptr.Load().Get(slug)
}

// Rescan rebuilds the registry from the prompts root and swaps it in.
func (h *RegistryHolder) Rescan() (*AnalyzerRegistry, error) {
	fresh, err := NewAnalyzerRegistry(h.ptr.Load().PromptsRoot)
	if err != nil {
		return nil, err
	}
	h.ptr.Store(fresh)
	return fresh, nil
}
