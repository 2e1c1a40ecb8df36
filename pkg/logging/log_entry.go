package logging

// LogEntry represents a structured log record with fields relevant to
// discovery sessions.
type LogEntry struct {
	// Standard fields
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// Session-specific fields
	SessionID  string // Active discovery session, if any
	Generation int    // Generation index, 0 when outside a generation step

	// General structured data
	Fields map[string]interface{}
}
