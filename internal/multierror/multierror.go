package multierror

import (
	"fmt"
	"strings"
	"sync"
)

// Error combines errors of several independent operations, keyed by the
// operation they belong to, e.g. the address of a connection that failed to close.
type Error[T comparable] struct {
	mu     sync.Mutex
	keys   []T
	errors map[T]error
}

// New creates a new Error.
func New[T comparable]() *Error[T] {
	return &Error[T]{
		errors: make(map[T]error),
	}
}

// Error returns the errors in the order they were added.
func (m *Error[T]) Error() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		parts = append(parts, fmt.Sprintf("%v: %s", k, m.errors[k]))
	}

	return strings.Join(parts, "; ")
}

// Unwrap makes errors.Is and errors.As look into every combined error.
func (m *Error[T]) Unwrap() []error {
	m.mu.Lock()
	defer m.mu.Unlock()

	errs := make([]error, 0, len(m.keys))
	for _, k := range m.keys {
		errs = append(errs, m.errors[k])
	}

	return errs
}

// Len returns the number of errors.
func (m *Error[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.keys)
}

// Add adds an error for the key. A second error for the same key replaces the first one.
func (m *Error[T]) Add(key T, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.errors[key]; !ok {
		m.keys = append(m.keys, key)
	}

	m.errors[key] = err
}

// Get returns the error added for the key.
func (m *Error[T]) Get(key T) (error, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	err, ok := m.errors[key]

	return err, ok
}

// Combined returns the Error if it contains any errors, nil otherwise.
func (m *Error[T]) Combined() error {
	if m.Len() == 0 {
		return nil
	}

	return m
}
