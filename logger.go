package sessgate

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger is the minimal structured logging interface the client writes to.
// Key/value pairs follow the message, alternating keys and values.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SimpleLogger writes leveled lines to stderr. Intended for examples and
// local debugging; production callers plug in their own Logger.
type SimpleLogger struct {
	out *log.Logger
}

// NewSimpleLogger creates a SimpleLogger writing to stderr.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{
		out: log.New(os.Stderr, "sessgate ", log.LstdFlags),
	}
}

func (l *SimpleLogger) log(level, msg string, keysAndValues ...interface{}) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	l.out.Println(b.String())
}

// Debug logs at debug level.
func (l *SimpleLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log("DEBUG", msg, keysAndValues...)
}

// Info logs at info level.
func (l *SimpleLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log("INFO", msg, keysAndValues...)
}

// Warn logs at warn level.
func (l *SimpleLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log("WARN", msg, keysAndValues...)
}

// Error logs at error level.
func (l *SimpleLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log("ERROR", msg, keysAndValues...)
}

// DebugConfig selects which lifecycle points get logged when a Logger is set.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogTokens    bool
	LogRefresh   bool
	RequestIDGen func() string
}

// DefaultDebugConfig enables all log points with the default ID generator.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      true,
		LogRequests:  true,
		LogTokens:    true,
		LogRefresh:   true,
		RequestIDGen: DefaultRequestIDGen,
	}
}

func (c *Client) debugEnabled() bool {
	return c.debug != nil && c.debug.Enabled && c.logger != nil
}
