package registry

import (
	"sync"

	"go.uber.org/zap"
)

// The process-wide registry. Owned here, never touched implicitly:
// callers opt in via Default(), and tests isolate themselves with
// ResetDefault().
var (
	defaultMu sync.RWMutex
	defaultR  = New(zap.NewNop())
)

// Default returns the process-wide registry shared by components that
// are constructed without an explicit one.
func Default() *Registry {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultR
}

// SetDefault replaces the process-wide registry. Pass a registry built
// with a real logger during application startup.
func SetDefault(r *Registry) {
	if r == nil {
		return
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultR = r
}

// ResetDefault discards the process-wide registry and installs a fresh
// empty one. Intended for tests.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultR = New(zap.NewNop())
}
