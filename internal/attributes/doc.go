// Package attributes evaluates user-defined span attributes and derives the
// trace ID shared by every span of a capture session.
//
// Expressions are written in the expr language and see one finalized record:
//   - env: environment as a KEY -> VALUE map (later duplicates win)
//   - args: argv as captured
//   - cmdline: argv joined with spaces
//   - callee, caller, cwd: resolved executable, calling comm, working directory
//
// A map result expands into one attribute per key using dot notation.
// Session trace IDs that are not 32 hex characters are hashed with SHA-256.
package attributes
