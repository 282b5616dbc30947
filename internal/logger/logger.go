package logger

// Logger is the logging contract shared by all pipeline components.
// Fields carry structured per-stage context (tile path, seed counts,
// threshold values) without forcing a concrete backend on callers.
type Logger interface {
	Debug(component, message string, fields map[string]interface{})
	Info(component, message string, fields map[string]interface{})
	Warning(component, message string, fields map[string]interface{})
	Error(component string, err error, fields map[string]interface{})
}

type nopLogger struct{}

// NewNop returns a Logger that discards everything. Used by tests and
// by library callers that bring no logging of their own.
func NewNop() Logger {
	return nopLogger{}
}

func (nopLogger) Debug(string, string, map[string]interface{})   {}
func (nopLogger) Info(string, string, map[string]interface{})    {}
func (nopLogger) Warning(string, string, map[string]interface{}) {}
func (nopLogger) Error(string, error, map[string]interface{})    {}
