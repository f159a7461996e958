package dto

// HealthResponse: status "ok" | "unavailable"; Components por dependencia.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}
