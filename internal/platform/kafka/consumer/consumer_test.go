package consumer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	t.Run("brokers required", func(t *testing.T) {
		_, err := New(Config{Topic: "bulwark.audit"}, nil)
		assert.ErrorContains(t, err, "brokers")
	})

	t.Run("topic required", func(t *testing.T) {
		_, err := New(Config{Brokers: "localhost:9092"}, nil)
		assert.ErrorContains(t, err, "topic")
	})

	t.Run("client is created lazily", func(t *testing.T) {
		c, err := New(Config{Brokers: "localhost:9092", Topic: "bulwark.audit", GroupID: "bulwarkctl"}, nil)
		require.NoError(t, err)
		assert.True(t, c.group)
		c.Close()
	})
}
