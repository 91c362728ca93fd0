package models

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"` // seconds
}

type ResetResponse struct {
	UserID string `json:"user_id,omitempty"`
	Key    string `json:"key,omitempty"`
	Reset  bool   `json:"reset"`
}

type BucketStatusResponse struct {
	Key      string  `json:"key"`
	Preset   string  `json:"preset"`
	Tokens   float64 `json:"tokens"`
	Capacity int     `json:"capacity"`
	Found    bool    `json:"found"`
}
