package mqttws

import (
	"io"
	"log"
	"os"

	"github.com/fatih/color"
)

// LogLevel is the minimum severity a logger writes.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	// LogLevelNone disables all logging.
	LogLevelNone
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// LogFields holds structured key-value pairs attached to a log line.
type LogFields map[string]any

// Logger is the logging interface used by the client.
type Logger interface {
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Warn(msg string, fields LogFields)
	Error(msg string, fields LogFields)

	// WithFields returns a logger that adds fields to every line.
	WithFields(fields LogFields) Logger

	Level() LogLevel
	SetLevel(level LogLevel)
}

// NoOpLogger discards everything. It is the default logger.
type NoOpLogger struct {
	level LogLevel
}

func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{level: LogLevelNone}
}

func (n *NoOpLogger) Debug(_ string, _ LogFields)   {}
func (n *NoOpLogger) Info(_ string, _ LogFields)    {}
func (n *NoOpLogger) Warn(_ string, _ LogFields)    {}
func (n *NoOpLogger) Error(_ string, _ LogFields)   {}
func (n *NoOpLogger) WithFields(_ LogFields) Logger { return n }
func (n *NoOpLogger) Level() LogLevel               { return n.level }
func (n *NoOpLogger) SetLevel(level LogLevel)       { n.level = level }

// StdLogger writes "[LEVEL] message fields" lines through the log package.
// Level tags are colored when color is enabled.
type StdLogger struct {
	logger *log.Logger
	level  LogLevel
	fields LogFields
	colors map[LogLevel]*color.Color
}

// StdLoggerOption configures a StdLogger.
type StdLoggerOption func(*StdLogger)

// WithColor enables or disables colored level tags regardless of whether
// the writer is a terminal.
func WithColor(enabled bool) StdLoggerOption {
	return func(s *StdLogger) {
		if !enabled {
			s.colors = nil
			return
		}
		s.colors = map[LogLevel]*color.Color{
			LogLevelDebug: color.New(color.FgMagenta),
			LogLevelInfo:  color.New(color.FgBlue),
			LogLevelWarn:  color.New(color.FgYellow),
			LogLevelError: color.New(color.FgRed),
		}
		for _, c := range s.colors {
			c.EnableColor()
		}
	}
}

// NewStdLogger returns a logger writing to w, or to stderr when w is nil.
func NewStdLogger(w io.Writer, level LogLevel, opts ...StdLoggerOption) *StdLogger {
	if w == nil {
		w = os.Stderr
	}
	s := &StdLogger{
		logger: log.New(w, "", log.LstdFlags),
		level:  level,
		fields: make(LogFields),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StdLogger) Debug(msg string, fields LogFields) { s.log(LogLevelDebug, msg, fields) }
func (s *StdLogger) Info(msg string, fields LogFields)  { s.log(LogLevelInfo, msg, fields) }
func (s *StdLogger) Warn(msg string, fields LogFields)  { s.log(LogLevelWarn, msg, fields) }
func (s *StdLogger) Error(msg string, fields LogFields) { s.log(LogLevelError, msg, fields) }

func (s *StdLogger) WithFields(fields LogFields) Logger {
	return &StdLogger{
		logger: s.logger,
		level:  s.level,
		fields: mergeFields(s.fields, fields),
		colors: s.colors,
	}
}

func (s *StdLogger) Level() LogLevel         { return s.level }
func (s *StdLogger) SetLevel(level LogLevel) { s.level = level }

func (s *StdLogger) log(level LogLevel, msg string, fields LogFields) {
	if level < s.level {
		return
	}

	tag := level.String()
	if c, ok := s.colors[level]; ok {
		tag = c.Sprint(tag)
	}

	all := mergeFields(s.fields, fields)
	if len(all) == 0 {
		s.logger.Printf("[%s] %s", tag, msg)
		return
	}
	s.logger.Printf("[%s] %s %v", tag, msg, all)
}

func mergeFields(base, extra LogFields) LogFields {
	out := make(LogFields, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Standard field names.
const (
	LogFieldClientID   = "client_id"
	LogFieldURL        = "url"
	LogFieldTopic      = "topic"
	LogFieldPacketID   = "packet_id"
	LogFieldPacketType = "packet_type"
	LogFieldQoS        = "qos"
	LogFieldReasonCode = "reason_code"
	LogFieldError      = "error"
	LogFieldDelay      = "delay"
	LogFieldBytes      = "bytes"
	LogFieldState      = "state"
)
