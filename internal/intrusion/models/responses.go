package models

// DeniedResponse is the 403 body of the guard.
type DeniedResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Category Category `json:"category,omitempty"`
}

type BlockListResponse struct {
	Blocks []*BlockRecord `json:"blocks"`
	Count  int            `json:"count"`
}

type UnblockResponse struct {
	IP        string `json:"ip"`
	Unblocked bool   `json:"unblocked"`
}
