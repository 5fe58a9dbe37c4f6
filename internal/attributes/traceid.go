package attributes

import (
	"crypto/sha256"
	"fmt"

	"go.opentelemetry.io/otel/trace"
)

// SessionSpanContext builds the remote parent shared by every span of one
// capture session. value is used as-is when it is a valid 32-char hex trace
// ID; anything else (typically "<package>-<version>") is hashed, so the same
// package version always lands in the same trace. hashed reports which path
// was taken.
func SessionSpanContext(value string) (sc trace.SpanContext, hashed bool) {
	sum := sha256.Sum256([]byte(value))

	traceID, err := trace.TraceIDFromHex(value)
	if err != nil || len(value) != 32 {
		copy(traceID[:], sum[:16])
		hashed = true
	}

	var spanID trace.SpanID
	copy(spanID[:], sum[16:24])

	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}), hashed
}

// SessionName is the default session value for a package version.
func SessionName(pkg, version string) string {
	return fmt.Sprintf("%s-%s", pkg, version)
}
