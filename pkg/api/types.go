package api

// --- Response bodies ---

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges a successful mutation.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status    string `json:"status"`
	VehicleID string `json:"vehicle_id"`
	Busy      bool   `json:"busy"`
}
