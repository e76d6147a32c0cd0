package handlers

import "time"

// ErrorResponse carries a machine readable error code and, where meaningful, a numeric hint
type ErrorResponse struct {
	Error             string `json:"error" example:"RATE_LIMITED"`
	Message           string `json:"message,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
	RemainingMinutes  int    `json:"remainingMinutes,omitempty"`
	RemainingAttempts *int   `json:"remainingAttempts,omitempty"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}
