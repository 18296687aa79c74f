package vars

import (
	"context"
	"strings"
	"sync"
)

// KV is the storage behind a Service. Keys arrive normalized.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string) error
	Close() error
}

// Service implements the driver's variable service over a KV store.
type Service struct {
	kv KV
}

// New creates a service backed by kv.
func New(kv KV) *Service {
	return &Service{kv: kv}
}

// NewMemoryService creates a service over a fresh Memory store.
func NewMemoryService() *Service {
	return New(NewMemory())
}

// ResolveExpressions evaluates the variable expressions in text.
func (s *Service) ResolveExpressions(ctx context.Context, text, separator string) (string, error) {
	return Resolve(text, separator,
		func(name string) (string, error) { return s.Value(ctx, name) },
		func(name, value string) error { return s.SetValue(ctx, name, value) },
	)
}

// Value returns the value of name, or "" when it is unset.
func (s *Service) Value(ctx context.Context, name string) (string, error) {
	v, _, err := s.kv.Get(ctx, key(name))
	return v, err
}

// SetValue stores value under name.
func (s *Service) SetValue(ctx context.Context, name, value string) error {
	return s.kv.Put(ctx, key(name), value)
}

// Close closes the underlying store.
func (s *Service) Close() error {
	return s.kv.Close()
}

func key(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Memory is an in-process KV.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Snapshot returns a copy of every stored variable.
func (m *Memory) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

func (m *Memory) Close() error {
	return nil
}
