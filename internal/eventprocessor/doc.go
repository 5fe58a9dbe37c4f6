// Package eventprocessor turns raw ring buffer samples into correlator updates.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│  events_basic / _arg / _env / _path_part│
//	└─────────────────┬───────────────────────┘
//	                  │ (kind, raw bytes)
//	                  ▼
//	┌─────────────────────────────────────────┐
//	│   eventprocessor                        │
//	│   - bpf.Decode into a typed fragment    │
//	│   - counts fragments per kind           │
//	│   - flags non UTF-8 args/envs as raw    │
//	└─────────┬───────────────────────────────┘
//	          │ record.Fragment
//	          ▼
//	┌─────────────────────────────────────────┐
//	│   correlator                            │
//	│   - one TraceRecord per identity        │
//	└─────────────────────────────────────────┘
//
// Samples that cannot be decoded are counted and reported to the caller; they
// never reach the correlator.
package eventprocessor
