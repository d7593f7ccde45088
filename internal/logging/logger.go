package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"

	"braces.dev/errtrace"
	"github.com/golang-cz/devslog"
	"github.com/mattn/go-isatty"
	console "github.com/phsym/console-slog"
	slogformatter "github.com/samber/slog-formatter"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogLevel parses a string into a LogLevel
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, errtrace.Errorf("invalid log level: %s", level)
	}
}

// Format selects the slog handler that renders entries
type Format string

const (
	FormatConsole Format = "console"
	FormatDev     Format = "dev"
	FormatJSON    Format = "json"
)

// ParseFormat parses a string into a Format; empty means console
func ParseFormat(format string) (Format, error) {
	switch Format(strings.ToLower(format)) {
	case "", FormatConsole:
		return FormatConsole, nil
	case FormatDev:
		return FormatDev, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatConsole, errtrace.Errorf("invalid log format: %s", format)
	}
}

const timeFormat = "2006-01-02 15:04:05.000"

var newFormatterHandler = slogformatter.NewFormatterHandler(
	slogformatter.ErrorFormatter("error"),
	slogformatter.FormatByType(func(addr *net.UDPAddr) slog.Value {
		if addr == nil {
			return slog.StringValue("<nil>")
		}
		return slog.StringValue(addr.String())
	}),
)

func newHandler(format Format, writer io.Writer, level slog.Leveler) slog.Handler {
	var handler slog.Handler
	switch format {
	case FormatDev:
		handler = devslog.NewHandler(writer, &devslog.Options{
			HandlerOptions: &slog.HandlerOptions{Level: level},
			SortKeys:       true,
			TimeFormat:     timeFormat,
		})
	case FormatJSON:
		handler = slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level})
	default:
		handler = console.NewHandler(writer, &console.HandlerOptions{
			Level:      level,
			TimeFormat: timeFormat,
			NoColor:    !isTerminal(writer),
		})
	}
	return newFormatterHandler(handler)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// StructuredLogger implements the Logger interface on top of log/slog
type StructuredLogger struct {
	level  *slog.LevelVar
	logger *slog.Logger
	closer io.Closer
}

// NewStructuredLogger creates a new console-format structured logger
func NewStructuredLogger(level LogLevel, writer io.Writer) *StructuredLogger {
	return NewFormattedLogger(level, FormatConsole, writer)
}

// NewFormattedLogger creates a structured logger rendering entries in the given format
func NewFormattedLogger(level LogLevel, format Format, writer io.Writer) *StructuredLogger {
	lv := new(slog.LevelVar)
	lv.Set(level.slogLevel())
	logger := &StructuredLogger{
		level:  lv,
		logger: slog.New(newHandler(format, writer, lv)),
	}
	if f, ok := writer.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		logger.closer = f
	}
	return logger
}

// NewFileLogger creates a logger that writes to a file
func NewFileLogger(level LogLevel, format Format, filename string) (*StructuredLogger, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("failed to open log file %s: %w", filename, err))
	}

	return NewFormattedLogger(level, format, file), nil
}

// NewConsoleLogger creates a logger that writes to stdout
func NewConsoleLogger(level LogLevel) *StructuredLogger {
	return NewStructuredLogger(level, os.Stdout)
}

// NewMultiLogger creates a logger that writes to multiple outputs
func NewMultiLogger(level LogLevel, format Format, writers ...io.Writer) *StructuredLogger {
	return NewFormattedLogger(level, format, io.MultiWriter(writers...))
}

// Debug logs a debug message with optional fields
func (l *StructuredLogger) Debug(msg string, fields ...Field) {
	l.log(slog.LevelDebug, msg, fields)
}

// Info logs an info message with optional fields
func (l *StructuredLogger) Info(msg string, fields ...Field) {
	l.log(slog.LevelInfo, msg, fields)
}

// Warn logs a warning message with optional fields
func (l *StructuredLogger) Warn(msg string, fields ...Field) {
	l.log(slog.LevelWarn, msg, fields)
}

// Error logs an error message with optional fields
func (l *StructuredLogger) Error(msg string, fields ...Field) {
	l.log(slog.LevelError, msg, fields)
}

// With returns a logger sharing this logger's output and level
func (l *StructuredLogger) With(fields ...Field) Logger {
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = slog.Any(f.Key, f.Value)
	}
	return &StructuredLogger{
		level:  l.level,
		logger: l.logger.With(args...),
	}
}

func (l *StructuredLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	l.logger.LogAttrs(ctx, level, msg, attrs...)
}

// SetLevel changes the logging level
func (l *StructuredLogger) SetLevel(level LogLevel) {
	l.level.Set(level.slogLevel())
}

// GetLevel returns the current logging level
func (l *StructuredLogger) GetLevel() LogLevel {
	switch l.level.Level() {
	case slog.LevelDebug:
		return DebugLevel
	case slog.LevelWarn:
		return WarnLevel
	case slog.LevelError:
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Close closes the logger if it's writing to a file
func (l *StructuredLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return errtrace.Wrap(l.closer.Close())
}

// Helper functions for creating common fields

// StringField creates a string field
func StringField(key, value string) Field {
	return Field{Key: key, Value: value}
}

// IntField creates an integer field
func IntField(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// ErrorField creates an error field
func ErrorField(err error) Field {
	return Field{Key: "error", Value: err}
}

// MethodField creates a SIP method field
func MethodField(method string) Field {
	return Field{Key: "sip_method", Value: method}
}

// AddressField creates an address field
func AddressField(key string, addr net.Addr) Field {
	return Field{Key: key, Value: addr}
}

// AORField creates an address-of-record field
func AORField(aor string) Field {
	return Field{Key: "aor", Value: aor}
}

// DatagramField creates a datagram correlation id field
func DatagramField(id string) Field {
	return Field{Key: "datagram_id", Value: id}
}

// LoggerConfig represents logger configuration
type LoggerConfig struct {
	Level  string
	File   string
	Format string
}

// NewLoggerFromConfig creates a logger based on configuration
func NewLoggerFromConfig(config LoggerConfig) (*StructuredLogger, error) {
	level, err := ParseLogLevel(config.Level)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	format, err := ParseFormat(config.Format)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}

	if config.File == "" || config.File == "stdout" {
		// Log to console only
		return NewFormattedLogger(level, format, os.Stdout), nil
	}

	file, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("failed to open log file %s: %w", config.File, err))
	}

	// Also log to console for important messages (warn and error)
	if level <= WarnLevel {
		logger := NewMultiLogger(level, format, file, os.Stdout)
		logger.closer = file
		return logger, nil
	}

	return NewFormattedLogger(level, format, file), nil
}

// Ensure the logger satisfies the interface
var _ Logger = (*StructuredLogger)(nil)
