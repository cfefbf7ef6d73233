package handler

// HealthResponse is the body of /health and /ready.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
	Error   string `json:"error,omitempty"`
}
