package logger

// Common structured field names used across the engine.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldSessionID = "session_id"
	FieldStage     = "stage"
	FieldAttempt   = "attempt"
	FieldDuration  = "duration"
)
