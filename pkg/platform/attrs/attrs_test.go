package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractString(t *testing.T) {
	kv := []any{"ip", "203.0.113.0/24", "count", 5, "odd"}

	assert.Equal(t, "203.0.113.0/24", ExtractString(kv, "ip"))
	assert.Equal(t, "5", ExtractString(kv, "count"))
	assert.Empty(t, ExtractString(kv, "odd"), "dangling key has no value")
	assert.Empty(t, ExtractString(kv, "missing"))
}
