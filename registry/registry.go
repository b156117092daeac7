// Package registry implements capability-based service dispatch.
//
// Backends for VAD, STT, LLM, and TTS register a Provider describing
// what they can build. Components resolve a ServiceRequest against the
// registry; the highest-priority provider whose predicate accepts the
// request wins, and its factory produces the backend handle.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/voiceflow/types"
)

var (
	// ErrInvalidProvider is returned by Register when the provider is
	// missing a name, a valid capability, a predicate, or a factory.
	ErrInvalidProvider = errors.New("registry: invalid provider")

	// ErrProviderNotFound is returned by Resolve when no providers are
	// registered for the requested capability at all.
	ErrProviderNotFound = errors.New("registry: no providers registered for capability")

	// ErrNoCapableProvider is returned by Resolve when providers exist
	// for the capability but none accepts the request.
	ErrNoCapableProvider = errors.New("registry: no provider can handle request")

	// ErrCreateFailed wraps a factory failure. Resolution does not fall
	// back to lower-priority providers once a factory has been chosen.
	ErrCreateFailed = errors.New("registry: provider factory failed")
)

// CreateError carries the failing provider's name alongside the factory
// error. errors.Is(err, ErrCreateFailed) matches it.
type CreateError struct {
	Provider string
	Cause    error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("registry: provider %q factory failed: %v", e.Provider, e.Cause)
}

func (e *CreateError) Unwrap() error { return e.Cause }

func (e *CreateError) Is(target error) bool { return target == ErrCreateFailed }

// Provider describes a backend factory for one capability.
type Provider struct {
	// Name identifies the provider within its capability. Registering
	// the same (Name, Capability) pair again replaces the earlier entry.
	Name string

	Capability types.Capability

	// Priority orders candidates during resolution; higher wins. Ties
	// keep registration order.
	Priority int

	// CanHandle reports whether this provider can serve the request.
	CanHandle func(req *types.ServiceRequest) bool

	// Create builds the backend handle. It runs at most once per
	// resolution, only after CanHandle accepted the request.
	Create func(req *types.ServiceRequest) (any, error)
}

type entry struct {
	Provider
	seq uint64 // registration order, preserved across replacement
}

// Registry is a thread-safe table of providers keyed by capability.
// The zero value is not usable; call New.
type Registry struct {
	mu      sync.RWMutex
	buckets map[types.Capability][]entry
	nextSeq uint64
	logger  *zap.Logger
}

// New creates an empty Registry. A nil logger is replaced with a nop.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		buckets: make(map[types.Capability][]entry),
		logger:  logger,
	}
}

// Register adds or replaces a provider. Replacement is keyed by
// (Name, Capability) and keeps the original registration sequence, so a
// re-registered provider does not jump ahead of same-priority peers.
func (r *Registry) Register(p Provider) error {
	if p.Name == "" || !p.Capability.Valid() || p.CanHandle == nil || p.Create == nil {
		return ErrInvalidProvider
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.buckets[p.Capability]
	replaced := false
	for i := range bucket {
		if bucket[i].Name == p.Name {
			bucket[i].Provider = p
			replaced = true
			break
		}
	}
	if !replaced {
		bucket = append(bucket, entry{Provider: p, seq: r.nextSeq})
		r.nextSeq++
	}
	sort.SliceStable(bucket, func(i, j int) bool {
		if bucket[i].Priority != bucket[j].Priority {
			return bucket[i].Priority > bucket[j].Priority
		}
		return bucket[i].seq < bucket[j].seq
	})
	r.buckets[p.Capability] = bucket

	r.logger.Debug("provider registered",
		zap.String("name", p.Name),
		zap.String("capability", string(p.Capability)),
		zap.Int("priority", p.Priority),
		zap.Bool("replaced", replaced))
	return nil
}

// Unregister removes a provider. Removing an absent provider is a no-op.
func (r *Registry) Unregister(name string, cap types.Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.buckets[cap]
	for i := range bucket {
		if bucket[i].Name == name {
			r.buckets[cap] = append(bucket[:i], bucket[i+1:]...)
			r.logger.Debug("provider unregistered",
				zap.String("name", name),
				zap.String("capability", string(cap)))
			return
		}
	}
}

// Resolve finds the best provider for the request and invokes its
// factory. Candidates are tried in priority order (ties by registration
// order); the first accepting predicate wins. A factory failure is
// final: resolution does not retry lower-priority providers, on the
// grounds that a provider that accepted the request and still failed
// signals a real fault rather than a routing miss.
func (r *Registry) Resolve(cap types.Capability, req *types.ServiceRequest) (any, error) {
	if req == nil {
		req = &types.ServiceRequest{Capability: cap}
	}

	r.mu.RLock()
	candidates := make([]entry, len(r.buckets[cap]))
	copy(candidates, r.buckets[cap])
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, cap)
	}

	for _, c := range candidates {
		if !c.CanHandle(req) {
			continue
		}
		handle, err := c.Create(req)
		if err != nil {
			r.logger.Warn("provider factory failed",
				zap.String("name", c.Name),
				zap.String("capability", string(cap)),
				zap.Error(err))
			return nil, &CreateError{Provider: c.Name, Cause: err}
		}
		if handle == nil {
			return nil, &CreateError{Provider: c.Name, Cause: errors.New("factory returned nil handle")}
		}
		r.logger.Info("provider resolved",
			zap.String("name", c.Name),
			zap.String("capability", string(cap)),
			zap.String("identifier", req.Identifier))
		return handle, nil
	}
	return nil, fmt.Errorf("%w: %s %q", ErrNoCapableProvider, cap, req.Identifier)
}

// ListProviders returns provider names for a capability in resolution
// order (priority desc, then registration order).
func (r *Registry) ListProviders(cap types.Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.buckets[cap]
	names := make([]string, 0, len(bucket))
	for _, e := range bucket {
		names = append(names, e.Name)
	}
	return names
}

// Len returns the number of providers registered for a capability.
func (r *Registry) Len(cap types.Capability) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buckets[cap])
}

// Clear removes every provider. Intended for tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buckets = make(map[types.Capability][]entry)
	r.nextSeq = 0
}
