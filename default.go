package tally

import "sync"

var (
	defaultMu  sync.Mutex
	defaultReg *Registry
)

// Default returns the process-wide registry, creating an empty one on first
// use.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultReg == nil {
		defaultReg = NewRegistry()
	}
	return defaultReg
}

// SetDefault installs r as the process-wide registry. It reports false, and
// changes nothing, once Default has already handed out a registry; call it
// from main before any counter is declared.
func SetDefault(r *Registry) bool {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultReg != nil {
		return false
	}
	defaultReg = r
	return true
}

// NewSum declares a Sum counter in the default registry.
func NewSum(name string, opts ...Option) *Sum { return Default().Sum(name, opts...) }

// NewMax declares a Max counter in the default registry.
func NewMax(name string, opts ...Option) *Max { return Default().Max(name, opts...) }

// NewMin declares a Min counter in the default registry.
func NewMin(name string, opts ...Option) *Min { return Default().Min(name, opts...) }

// NewAverage declares an Average counter in the default registry.
func NewAverage(name string, opts ...Option) *Average { return Default().Average(name, opts...) }
