// Package correlator owns the table of in-flight TraceRecords.
//
// Every fragment names its Identity. The first fragment for an identity
// creates the record; every later fragment mutates that same instance:
//
//	basic ─────┐
//	arg ───────┤                 ┌────────────────────────────┐
//	env ───────┼──▶ Correlator ──▶ map[Identity]*TraceRecord  │
//	path part ─┘                 └─────────────┬──────────────┘
//	                                           │ Drain(pred) at shutdown
//	                                           ▼
//	                                 eligible records, table emptied
//
// No fragment kind is assumed to arrive first and any subset may be missing.
// Fragments for one identity must be applied in arrival order; the table
// itself is guarded by a mutex so a drain or eviction may run alongside the
// consumer.
package correlator
