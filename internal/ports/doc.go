// Package ports defines the interfaces (ports) that connect the scheduler
// core to infrastructure adapters.
//
// # Port Interfaces
//
//   - [Fetcher]: Runs one fetch for a module and returns a FetchResult
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//   - [Publisher]: Fire-and-forget notification surface
//   - [Subscriber]: Receives notifications published by other modules
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) and the kind variants
// (internal/modules) implement them.
package ports
