// Package domain defines the core entities of the channel search engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SearchRequest: normalised keywords, channels and time window
//   - RawMessage: one message as delivered by the chat network
//   - MatchedMessage: a RawMessage plus the keywords it matched
//   - ResultSet: merged, deduplicated matches for one request
//   - Watch: a saved request polled on an interval
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
