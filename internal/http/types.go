package http

// ScrubRequest is the request body for POST /api/v1/scrub.
type ScrubRequest struct {
	Content string `json:"content"`
}

// ScrubResponse is the response body for POST /api/v1/scrub.
type ScrubResponse struct {
	Content       string         `json:"content"`
	FindingsCount int            `json:"findings_count"`
	Labels        map[string]int `json:"labels,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	RedactionMode string `json:"redaction_mode"`
	SecretCount   int    `json:"secret_count"`
	Uptime        string `json:"uptime"`
}
