package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

var levelColors = map[LogLevel]string{
	DEBUG: colorBlue,
	INFO:  colorReset,
	WARN:  colorYellow,
	ERROR: colorRed,
}

// consoleSink is the writer shared by a ConsoleLogger and every logger derived from it
type consoleSink struct {
	mu     sync.Mutex
	writer io.Writer
	level  LogLevel
}

// ConsoleLogger writes one human-readable line per entry, typically to stderr
type ConsoleLogger struct {
	sink             *consoleSink
	traceID          string
	colorEnabled     bool
	timestampEnabled bool
	redactSensitive  bool
}

// ConsoleLoggerConfig contains configuration for console logger
type ConsoleLoggerConfig struct {
	Writer           io.Writer
	Level            LogLevel
	ColorEnabled     bool
	TimestampEnabled bool
	RedactSensitive  bool
}

// NewConsoleLogger creates a new console logger
func NewConsoleLogger(config ConsoleLoggerConfig) *ConsoleLogger {
	if config.Writer == nil {
		config.Writer = os.Stderr
	}

	return &ConsoleLogger{
		sink:             &consoleSink{writer: config.Writer, level: config.Level},
		colorEnabled:     config.ColorEnabled,
		timestampEnabled: config.TimestampEnabled,
		redactSensitive:  config.RedactSensitive,
	}
}

func shortTraceID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var redactions = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-._~+/]+=*`), "Bearer [REDACTED]"},
	{regexp.MustCompile(`(access_token|refresh_token|id_token)["']?\s*[:=]\s*["']?[A-Za-z0-9\-._~+/]+=*`), "$1=[REDACTED]"},
	{regexp.MustCompile(`(?i)(client_secret|api[_-]?key)["']?\s*[:=]\s*["']?[A-Za-z0-9\-._~+/]+=*`), "$1=[REDACTED]"},
	{regexp.MustCompile(`(?i)authorization["']?\s*[:=]\s*["']?[^\s"']+`), "Authorization: [REDACTED]"},
	{regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[^-]*-----END [A-Z ]*PRIVATE KEY-----`), "[REDACTED PRIVATE KEY]"},
}

func redactSensitiveData(s string) string {
	for _, r := range redactions {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}

// formatValue quotes values that would otherwise be ambiguous on one line,
// such as document titles with spaces
func formatValue(v interface{}) string {
	s := fmt.Sprintf("%v", v)
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func (l *ConsoleLogger) colored(color, s string) string {
	if !l.colorEnabled {
		return s
	}
	return color + s + colorReset
}

func (l *ConsoleLogger) formatMessage(level LogLevel, msg string, fields ...Field) string {
	var sb strings.Builder

	if l.timestampEnabled {
		sb.WriteString(l.colored(colorGray, time.Now().Format("2006-01-02 15:04:05")))
		sb.WriteByte(' ')
	}

	sb.WriteString(l.colored(levelColors[level], fmt.Sprintf("%-5s", level.String())))
	sb.WriteByte(' ')

	if l.traceID != "" {
		sb.WriteString(l.colored(colorGray, "["+shortTraceID(l.traceID)+"]"))
		sb.WriteByte(' ')
	}

	sb.WriteString(msg)
	for _, field := range fields {
		sb.WriteByte(' ')
		sb.WriteString(field.Key)
		sb.WriteByte('=')
		sb.WriteString(formatValue(field.Value))
	}

	if l.redactSensitive {
		return redactSensitiveData(sb.String())
	}
	return sb.String()
}

func (l *ConsoleLogger) log(level LogLevel, msg string, fields ...Field) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if level < l.sink.level {
		return
	}
	_, _ = fmt.Fprintln(l.sink.writer, l.formatMessage(level, msg, fields...))
}

func (l *ConsoleLogger) Debug(msg string, fields ...Field) {
	l.log(DEBUG, msg, fields...)
}

func (l *ConsoleLogger) Info(msg string, fields ...Field) {
	l.log(INFO, msg, fields...)
}

func (l *ConsoleLogger) Warn(msg string, fields ...Field) {
	l.log(WARN, msg, fields...)
}

func (l *ConsoleLogger) Error(msg string, fields ...Field) {
	l.log(ERROR, msg, fields...)
}

// WithTraceID returns a logger on the same sink that prefixes every line with traceID
func (l *ConsoleLogger) WithTraceID(traceID string) Logger {
	derived := *l
	derived.traceID = traceID
	return &derived
}

// WithContext returns a new logger that extracts trace ID from context
func (l *ConsoleLogger) WithContext(ctx context.Context) Logger {
	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		return l
	}
	return l.WithTraceID(traceID)
}

// SetLevel sets the minimum level for this logger and every logger derived from it
func (l *ConsoleLogger) SetLevel(level LogLevel) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

func (l *ConsoleLogger) Close() error {
	return nil
}
