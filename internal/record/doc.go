// Package record models one execve() invocation as it is stitched together from
// independent kernel fragments.
//
// Lifecycle:
//
//	┌──────────────┐  first fragment   ┌──────────────┐
//	│   (absent)   │ ────────────────▶ │ Accumulating │ ◄──┐ basic / arg / env /
//	└──────────────┘                   └──────┬───────┘    │ path segment
//	                                          │ ───────────┘
//	                                          │ Finalize()
//	                                          ▼
//	                                   ┌──────────────┐
//	                                   │  Finalized   │  working dir assembled once,
//	                                   └──────────────┘  decoded flags available
//
// A TraceRecord is eligible once the caller name, callee path, at least one
// argument and at least one working-directory segment are known. The
// environment may legitimately be empty.
//
// Decoded flags are never stored: they are always derived from the status
// bitmask, so they cannot disagree with it.
package record
