// Package domain contains the core domain entities and value objects for ambient.
//
// This package represents the innermost layer of the application. It has
// no dependencies on infrastructure concerns (HTTP, file system, logging) and
// contains only the data model of the scheduler and its error taxonomy.
//
// # Entities
//
//   - [ModuleSpec]: Immutable description of one configured display module
//   - [Item]: A single displayable record (news entry, calendar event, weather day, text line)
//   - [FetchResult]: The outcome of one fetch, either fully Ok or fully failed
//   - [Snapshot]: The renderable view of one module (visible slice plus metadata)
//
// # Errors
//
//   - [FetchError]: Classified fetch failure (Network, Timeout, ParseError, Unauthorized, RateLimited)
//   - [ConfigError]: Per-module configuration failure, fatal only for that module
//   - [FilterError]: A single malformed item, always recovered locally
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Testable without mocks or external systems
package domain
