// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - SessionClient: Paged channel history over an authenticated session
//   - RateController: Per-channel and connection budgets, cooldowns
//   - RequestStore: Append-only request log
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// Only needed for watch mode:
//
//   - WatchStore: Saved watch persistence
//   - WatermarkStore: Per-channel last seen message ids
//   - MatchSink: Receives new matches from each poll
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
