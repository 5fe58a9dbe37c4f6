// Package output turns finalized trace records into OpenTelemetry spans.
//
// SpanExporter is a pure formatting layer that:
//   - Receives finalized records, in drain order
//   - Creates one "execve" span per record under a session span
//   - Sets span attributes from the record and the attributes evaluator
//
// It does NOT:
//   - Decode ring buffer samples
//   - Decide eligibility or exclusion
//   - Manage the tracer provider lifecycle (see internal/otel)
package output
