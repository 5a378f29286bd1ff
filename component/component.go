// Package component provides the component interface definitions
// This is the lowest-level package; it depends on no other package to avoid import cycles
package component

import "context"

// Component unified lifecycle management interface
//
// Lifecycle: Init -> Start -> Stop
type Component interface {
	// Name component name (unique identifier)
	// Used for dependency declaration and component lookup
	Name() string

	// DependsOn declares the names of depended-on components
	// Hosts order initialization by these declarations
	//
	// Optional dependencies use the "optional:" prefix:
	//   return []string{
	//       "config",          // mandatory: error if not registered
	//       "logger",          // mandatory: error if not registered
	//       "optional:event",  // optional: skipped if not registered
	//   }
	//
	// A component must handle absent optional dependencies itself
	// (for example by falling back to defaults)
	DependsOn() []string

	// Init initializes the component (creates resources, starts no services)
	//
	// Responsibilities:
	// - read its own configuration from loader
	// - create resources (stores, pools, clients)
	// - do not start listeners or background work
	Init(ctx context.Context, loader ConfigLoader) error

	// Start starts the component (background work begins here)
	Start(ctx context.Context) error

	// Stop stops the component (releases resources, must be idempotent)
	Stop(ctx context.Context) error
}

// HealthChecker health check interface
// Components may optionally implement this to report health
type HealthChecker interface {
	// Check performs a health check
	// nil means healthy, error means unhealthy
	Check(ctx context.Context) error

	// Name returns the check name (e.g. "querycache")
	Name() string
}

// HealthCheckProvider exposes a component's health checker
type HealthCheckProvider interface {
	GetHealthChecker() HealthChecker
}
