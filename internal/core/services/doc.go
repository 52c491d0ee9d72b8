// Package services implements the driving port interfaces.
// Services contain the search pipeline (fetch, match, cache, merge) and
// orchestrate calls to driven ports (adapters).
//
// Services never import adapters; everything outside the process is reached
// through internal/core/ports/driven.
package services
