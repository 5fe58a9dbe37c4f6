package attributes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionSpanContext_Hex(t *testing.T) {
	sc, hashed := SessionSpanContext("a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4")
	assert.False(t, hashed)
	assert.Equal(t, "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4", sc.TraceID().String())
	assert.True(t, sc.IsValid())
	assert.True(t, sc.IsRemote())
	assert.True(t, sc.IsSampled())
}

func TestSessionSpanContext_Hashed(t *testing.T) {
	a, hashed := SessionSpanContext(SessionName("gzip", "1.12"))
	assert.True(t, hashed)
	assert.True(t, a.IsValid())

	b, _ := SessionSpanContext("gzip-1.12")
	assert.Equal(t, a.TraceID(), b.TraceID(), "same session, same trace")

	c, _ := SessionSpanContext("gzip-1.13")
	assert.NotEqual(t, a.TraceID(), c.TraceID())
}

func TestSessionSpanContext_ZeroHexIsHashed(t *testing.T) {
	sc, hashed := SessionSpanContext("00000000000000000000000000000000")
	assert.True(t, hashed)
	assert.True(t, sc.TraceID().IsValid())
}
