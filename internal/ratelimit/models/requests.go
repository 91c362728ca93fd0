package models

import "strings"

// ResetBucketRequest clears a single token bucket.
type ResetBucketRequest struct {
	Preset string `json:"preset" validate:"required,max=64"`
	Actor  string `json:"actor" validate:"required,max=256"`
}

func (r *ResetBucketRequest) Normalize() {
	if r == nil {
		return
	}
	r.Preset = strings.TrimSpace(strings.ToLower(r.Preset))
	r.Actor = strings.TrimSpace(r.Actor)
}
