package models

import (
	"strings"
	"time"
)

// BlockRequest is an operator-issued block.
type BlockRequest struct {
	IP       string `json:"ip" validate:"required,ip"`
	Duration string `json:"duration" validate:"omitempty"`
	Reason   string `json:"reason" validate:"max=256"`
}

func (r *BlockRequest) Normalize() {
	if r == nil {
		return
	}
	r.IP = strings.TrimSpace(r.IP)
	r.Duration = strings.TrimSpace(r.Duration)
	r.Reason = strings.TrimSpace(r.Reason)
}

// ParsedDuration returns the requested duration, or fallback when none was
// given. Durations outside (0, 30d] are rejected.
func (r *BlockRequest) ParsedDuration(fallback time.Duration) (time.Duration, bool) {
	if r.Duration == "" {
		return fallback, true
	}
	d, err := time.ParseDuration(r.Duration)
	if err != nil || d <= 0 || d > 30*24*time.Hour {
		return 0, false
	}
	return d, true
}
