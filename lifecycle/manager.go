package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotReady is returned when a capability operation runs before a
	// backend has been loaded.
	ErrNotReady = errors.New("lifecycle: no backend loaded")

	// ErrInvalidState is returned when an operation arrives while a
	// mutation is already in flight.
	ErrInvalidState = errors.New("lifecycle: operation not allowed in current state")

	// ErrNilCreateFunc is returned by NewManager without a factory.
	ErrNilCreateFunc = errors.New("lifecycle: create function is required")
)

// CreateFunc builds a backend handle for a model path. It typically
// resolves through the service registry.
type CreateFunc func(ctx context.Context, path, id string) (any, error)

// DestroyFunc tears down a backend handle produced by CreateFunc.
type DestroyFunc func(service any)

// Observer receives load/unload notifications, e.g. for a metrics
// collector. Calls happen outside the manager lock.
type Observer interface {
	ObserveLoad(resource string, success bool, d time.Duration)
	ObserveUnload(resource string)
}

// Metrics is a read-only snapshot of a manager's counters.
type Metrics struct {
	TotalLoads      uint64
	SuccessfulLoads uint64
	FailedLoads     uint64
	TotalUnloads    uint64
	AverageLoadTime time.Duration
	LastTransition  time.Time
}

// Options configures a Manager. Both fields are optional.
type Options struct {
	Logger   *zap.Logger
	Observer Observer
}

// Manager drives one backend handle through the lifecycle state
// machine. It guarantees at most one live handle and at most one
// mutation in flight; concurrent loads of the same path collapse into
// a single load via singleflight.
type Manager struct {
	resource  string
	createFn  CreateFunc
	destroyFn DestroyFunc
	logger    *zap.Logger
	observer  Observer

	group singleflight.Group

	mu        sync.Mutex
	state     State
	service   any
	modelPath string
	modelID   string
	modelName string
	lastErr   error

	totalLoads      uint64
	successfulLoads uint64
	failedLoads     uint64
	totalUnloads    uint64
	totalLoadTime   time.Duration
	lastTransition  time.Time
}

// NewManager creates a Manager for the named resource ("stt", "llm",
// "tts-voice", ...). destroy may be nil when the backend needs no
// teardown beyond garbage collection.
func NewManager(resource string, create CreateFunc, destroy DestroyFunc, opts Options) (*Manager, error) {
	if create == nil {
		return nil, ErrNilCreateFunc
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		resource:       resource,
		createFn:       create,
		destroyFn:      destroy,
		logger:         logger.With(zap.String("resource", resource)),
		observer:       opts.Observer,
		state:          StateUninitialized,
		lastTransition: time.Now(),
	}, nil
}

// transition must be called with mu held.
func (m *Manager) transition(to State) error {
	if !CanTransition(m.state, to) {
		return ErrInvalidTransition{From: m.state, To: to}
	}
	m.logger.Debug("lifecycle transition",
		zap.String("from", string(m.state)),
		zap.String("to", string(to)))
	m.state = to
	m.lastTransition = time.Now()
	return nil
}

// Configure marks the component as configured. It is idempotent:
// calling it again while Configured or Ready succeeds without effect.
// A Failed manager must be Reset first.
func (m *Manager) Configure() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateUninitialized:
		return m.transition(StateConfigured)
	case StateConfigured, StateReady:
		return nil
	case StateFailed:
		return ErrInvalidTransition{From: StateFailed, To: StateConfigured}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidState, m.state)
	}
}

// Load brings a backend for the given model path into the Ready state.
//
// Loading the path that is already Ready is a no-op returning the live
// handle. Loading a different path while Ready destroys the previous
// handle before the new load starts, so at most one handle is ever
// live. Concurrent loads of the same path share a single execution.
func (m *Manager) Load(ctx context.Context, path, id, name string) (any, error) {
	if path == "" {
		return nil, errors.New("lifecycle: model path is required")
	}
	if id == "" {
		id = path
	}
	if name == "" {
		name = id
	}

	v, err, _ := m.group.Do(path, func() (any, error) {
		return m.load(ctx, path, id, name)
	})
	return v, err
}

func (m *Manager) load(ctx context.Context, path, id, name string) (any, error) {
	m.mu.Lock()

	if m.state == StateReady && m.modelPath == path && m.service != nil {
		svc := m.service
		m.mu.Unlock()
		m.logger.Debug("model already loaded, skipping", zap.String("path", path))
		return svc, nil
	}

	if m.state == StateLoading || m.state == StateCleaningUp {
		state := m.state
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, state)
	}

	var previous any
	if m.state == StateReady {
		previous = m.service
		m.service = nil
	}
	if err := m.transition(StateLoading); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.totalLoads++
	m.mu.Unlock()

	if previous != nil {
		m.logger.Info("destroying previous backend before re-load",
			zap.String("path", path))
		m.destroy(previous)
	}

	start := time.Now()
	svc, err := m.createFn(ctx, path, id)
	elapsed := time.Since(start)
	if err == nil && svc == nil {
		err = errors.New("lifecycle: create returned nil backend")
	}

	m.mu.Lock()
	if err != nil {
		m.failedLoads++
		m.lastErr = err
		_ = m.transition(StateFailed)
		m.mu.Unlock()

		m.notifyLoad(false, elapsed)
		m.logger.Error("model load failed",
			zap.String("path", path),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}

	m.service = svc
	m.modelPath = path
	m.modelID = id
	m.modelName = name
	m.lastErr = nil
	m.successfulLoads++
	m.totalLoadTime += elapsed
	_ = m.transition(StateReady)
	m.mu.Unlock()

	m.notifyLoad(true, elapsed)
	m.logger.Info("model loaded",
		zap.String("path", path),
		zap.String("id", id),
		zap.Duration("elapsed", elapsed))
	return svc, nil
}

// Unload tears the backend down: Ready -> CleaningUp -> Uninitialized.
// Unloading an Uninitialized manager is a no-op.
func (m *Manager) Unload() error {
	m.mu.Lock()

	if m.state == StateUninitialized {
		m.mu.Unlock()
		return nil
	}
	if err := m.transition(StateCleaningUp); err != nil {
		m.mu.Unlock()
		return err
	}
	svc := m.service
	m.service = nil
	m.modelPath = ""
	m.modelID = ""
	m.modelName = ""
	m.totalUnloads++
	m.mu.Unlock()

	if svc != nil {
		m.destroy(svc)
	}

	m.mu.Lock()
	err := m.transition(StateUninitialized)
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.ObserveUnload(m.resource)
	}
	m.logger.Info("backend unloaded")
	return err
}

// Reset recovers a Failed manager back to Configured, clearing the
// retained error. It is only legal from the Failed state.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transition(StateConfigured); err != nil {
		return err
	}
	m.lastErr = nil
	return nil
}

// Cleanup force-tears the manager down to Uninitialized from any
// state, destroying the live handle if present. Used for component
// destruction; unlike Unload it never fails.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	svc := m.service
	m.service = nil
	m.modelPath = ""
	m.modelID = ""
	m.modelName = ""
	m.lastErr = nil
	m.state = StateUninitialized
	m.lastTransition = time.Now()
	m.mu.Unlock()

	if svc != nil {
		m.destroy(svc)
		m.mu.Lock()
		m.totalUnloads++
		m.mu.Unlock()
		if m.observer != nil {
			m.observer.ObserveUnload(m.resource)
		}
	}
}

// Service returns the live backend handle, or ErrNotReady.
func (m *Manager) Service() (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateReady || m.service == nil {
		return nil, fmt.Errorf("%w (state %s)", ErrNotReady, m.state)
	}
	return m.service, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsLoaded reports whether a backend is live.
func (m *Manager) IsLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateReady && m.service != nil
}

// ModelID returns the id of the loaded model, empty when none.
func (m *Manager) ModelID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modelID
}

// ModelName returns the display name of the loaded model.
func (m *Manager) ModelName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modelName
}

// ModelPath returns the path of the loaded model.
func (m *Manager) ModelPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modelPath
}

// LastError returns the error retained from the most recent failed
// load, nil otherwise.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Metrics returns a snapshot of the manager's counters.
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Metrics{
		TotalLoads:      m.totalLoads,
		SuccessfulLoads: m.successfulLoads,
		FailedLoads:     m.failedLoads,
		TotalUnloads:    m.totalUnloads,
		LastTransition:  m.lastTransition,
	}
	if m.successfulLoads > 0 {
		snap.AverageLoadTime = m.totalLoadTime / time.Duration(m.successfulLoads)
	}
	return snap
}

func (m *Manager) destroy(svc any) {
	if m.destroyFn != nil {
		m.destroyFn(svc)
	}
}

func (m *Manager) notifyLoad(success bool, d time.Duration) {
	if m.observer != nil {
		m.observer.ObserveLoad(m.resource, success, d)
	}
}
