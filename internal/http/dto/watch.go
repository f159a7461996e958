package dto

type ScanRequest struct {
	ChipToken string `json:"chip_token"`
	// 0 = intervalo por defecto. Se acota a [30, 120].
	HeartbeatIntervalSeconds int `json:"heartbeat_interval_seconds,omitempty"`
}

type ScanResponse struct {
	SessionID                string `json:"session_id,omitempty"`
	Allowed                  bool   `json:"allowed"`
	Reason                   string `json:"reason,omitempty"`
	HeartbeatIntervalSeconds int    `json:"heartbeat_interval_seconds,omitempty"`
	TimeoutSeconds           int    `json:"timeout_seconds,omitempty"`
	RemainingSeconds         int64  `json:"remaining_seconds"`
}

// SessionRequest es el body de heartbeat y end.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

type HeartbeatResponse struct {
	Continue         bool   `json:"continue"`
	Reason           string `json:"reason,omitempty"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}
