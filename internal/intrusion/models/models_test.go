package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "blocked:203.0.113.5", BlockKey("203.0.113.5"))
	assert.Equal(t, "sql_injection:203.0.113.5", ViolationKey(CategorySQLInjection, "203.0.113.5"))
	assert.Equal(t, CategoryXSS, ParseCategory("  XSS "))
}

func TestBlockRequestParsedDuration(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Duration
		wantOK bool
	}{
		{"", time.Hour, true},
		{"90m", 90 * time.Minute, true},
		{"-1h", 0, false},
		{"forever", 0, false},
		{"800h", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r := &BlockRequest{Duration: tt.in}
			got, ok := r.ParsedDuration(time.Hour)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
