package models

import "time"

// BlockedResponse is the JSON 403 body of the gate.
type BlockedResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Reasons []string `json:"reasons"`
}

// ReputationResponse is returned by the admin inspect endpoint.
type ReputationResponse struct {
	IP        string    `json:"ip"`
	Allowed   bool      `json:"allowed"`
	Source    Source    `json:"source"`
	Reasons   []string  `json:"reasons"`
	Location  *Location `json:"location,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitzero"`
	Degraded  bool      `json:"degraded,omitempty"`
}

// NewReputationResponse maps a decision to its admin view.
func NewReputationResponse(d *Decision) *ReputationResponse {
	resp := &ReputationResponse{
		IP:       d.IP,
		Allowed:  d.Allowed,
		Source:   d.Source,
		Reasons:  d.Reasons,
		Degraded: d.Degraded,
	}
	if resp.Reasons == nil {
		resp.Reasons = []string{}
	}
	if d.Verdict != nil {
		loc := d.Verdict.Location
		resp.Location = &loc
		resp.CheckedAt = d.Verdict.Timestamp
	}
	return resp
}

type InvalidateResponse struct {
	IP          string `json:"ip"`
	Invalidated bool   `json:"invalidated"`
}
