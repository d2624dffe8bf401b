package dto

type HealthData struct {
	Status   string         `json:"status"` // ok / degraded
	Database DatabaseHealth `json:"database"`
	Pool     PoolStats      `json:"pool"`
	Queries  QueryStats     `json:"queries"`
}

type DatabaseHealth struct {
	Up        bool    `json:"up"`
	LatencyMs float64 `json:"latencyMs"`
	Error     string  `json:"error,omitempty"`
}

type PoolStats struct {
	MaxOpen        int   `json:"maxOpen"`
	Open           int   `json:"open"`
	InUse          int   `json:"inUse"`
	Idle           int   `json:"idle"`
	WaitCount      int64 `json:"waitCount"`
	WaitDurationMs int64 `json:"waitDurationMs"`
}

type QueryStats struct {
	Total      int64 `json:"total"`
	Errors     int64 `json:"errors"`
	Retries    int64 `json:"retries"`
	Reconnects int64 `json:"reconnects"`
	Slow       int64 `json:"slow"`
}
