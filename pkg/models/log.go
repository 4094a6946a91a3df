package models

import "time"

// LogEntry is one front-end request as shipped to the request log topic.
type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	IP         string    `json:"ip"`
	StatusCode int       `json:"status_code"`
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Bytes      int       `json:"bytes"`
	Duration   float64   `json:"duration_sec"`
	Service    string    `json:"service"`
}
