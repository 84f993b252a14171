package host

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrServiceUnavailable is returned when a named service cannot be resolved.
var ErrServiceUnavailable = errors.New("host: service unavailable")

// Provider produces a service instance on demand.
type Provider func(ctx context.Context) (any, error)

// Logger defines the logging interface used by the Locator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// entry guards its own resolution so a slow provider only blocks callers
// waiting on the same name.
type entry struct {
	mu       sync.Mutex
	provider Provider
	resolved bool
	service  any
}

// Locator resolves services by name.
//
// Thread Safety: all methods are safe for concurrent use. Concurrent lookups
// of the same unresolved name are serialised so a provider never runs twice
// in parallel. The registry lock is not held while a provider runs, so
// Register, Names and lookups of other names proceed meanwhile.
type Locator struct {
	mu       sync.Mutex
	services map[string]*entry
	logger   Logger
}

// NewLocator creates an empty locator.
func NewLocator() *Locator {
	return &Locator{
		services: make(map[string]*entry),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the locator.
func (l *Locator) SetLogger(logger Logger) {
	l.logger = logger
}

// Register binds name to provider, replacing any earlier registration.
func (l *Locator) Register(name string, provider Provider) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services[name] = &entry{provider: provider}
}

// RegisterInstance binds name to an already constructed service.
func (l *Locator) RegisterInstance(name string, service any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services[name] = &entry{resolved: true, service: service}
}

// Lookup returns the service registered under name.
//
// Returns an error wrapping ErrServiceUnavailable when the name is unknown,
// the provider fails or the provider yields nil.
func (l *Locator) Lookup(ctx context.Context, name string) (any, error) {
	l.mu.Lock()
	e, ok := l.services[name]
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrServiceUnavailable, name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.resolved {
		return e.service, nil
	}
	if e.provider == nil {
		return nil, fmt.Errorf("%w: %q has no provider", ErrServiceUnavailable, name)
	}

	svc, err := e.provider(ctx)
	if err != nil {
		l.logger.Warn("service provider failed", "service", name, "error", err)
		return nil, fmt.Errorf("%w: %q: %w", ErrServiceUnavailable, name, err)
	}
	if svc == nil {
		return nil, fmt.Errorf("%w: %q resolved to nil", ErrServiceUnavailable, name)
	}

	e.resolved = true
	e.service = svc
	l.logger.Debug("service resolved", "service", name)
	return svc, nil
}

// Names returns the registered service names, sorted.
func (l *Locator) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, 0, len(l.services))
	for name := range l.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupAs resolves name and asserts the service to T. A service of the
// wrong type is reported as unavailable.
func LookupAs[T any](ctx context.Context, l *Locator, name string) (T, error) {
	var zero T
	svc, err := l.Lookup(ctx, name)
	if err != nil {
		return zero, err
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q is %T", ErrServiceUnavailable, name, svc)
	}
	return typed, nil
}
