package logger

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Search
	FieldCacheKey    = "cache_key"
	FieldOrigin      = "origin"
	FieldDestination = "destination"
	FieldOutcome     = "outcome"
	FieldAttempt     = "attempt"
	FieldWorkerID    = "worker_id"

	FieldService = "service"
)
