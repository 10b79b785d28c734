package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"shiwake/internal/errors"

	"github.com/sirupsen/logrus"
)

var (
	isDebug atomic.Bool
	logger  = NewLogger()
)

// Field is a single structured key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// F builds a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger is a thin wrapper over a logrus entry that records the caller of
// the wrapper rather than the wrapper itself.
type Logger struct {
	entry *logrus.Entry
	file  *os.File
	min   logrus.Level
}

type settings struct {
	out   io.Writer
	json  bool
	file  string
	level logrus.Level
}

// Option configures a Logger.
type Option func(*settings)

// WithOutput sends log lines to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(s *settings) { s.out = w }
}

// WithJSON switches to one JSON object per line.
func WithJSON() Option {
	return func(s *settings) { s.json = true }
}

// WithFormat selects "json" or "text" output.
func WithFormat(format string) Option {
	return func(s *settings) { s.json = strings.EqualFold(format, "json") }
}

// WithFile additionally appends log lines to the named file.
func WithFile(path string) Option {
	return func(s *settings) { s.file = path }
}

// WithLevel sets the minimum level ("debug", "info", "warn", "error").
// Debug output still requires SetDebug(true) or a "debug" level.
func WithLevel(level string) Option {
	return func(s *settings) {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			s.level = lvl
		}
	}
}

// NewLogger builds a logger. Without options it writes text to stdout.
func NewLogger(opts ...Option) *Logger {
	s := settings{out: os.Stdout, level: logrus.InfoLevel}
	for _, opt := range opts {
		opt(&s)
	}

	l := &Logger{min: s.level}
	out := s.out
	if s.file != "" {
		if err := os.MkdirAll(filepath.Dir(s.file), 0755); err == nil {
			f, err := os.OpenFile(s.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				l.file = f
				out = io.MultiWriter(s.out, f)
			}
		}
	}

	base := logrus.New()
	base.SetOutput(out)
	// Level filtering for debug happens in the wrapper so SetDebug can flip
	// it at runtime for every logger.
	base.SetLevel(logrus.DebugLevel)
	if s.json {
		base.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg:  "message",
				logrus.FieldKeyTime: "timestamp",
			},
		})
	} else {
		base.SetFormatter(&textFormatter{})
	}

	l.entry = logrus.NewEntry(base)
	return l
}

// Configure replaces the package-level logger.
func Configure(opts ...Option) {
	logger = NewLogger(opts...)
}

// SetDebug enables or disables debug output for every logger.
func SetDebug(debug bool) {
	isDebug.Store(debug)
}

// DebugEnabled reports whether debug output is on.
func DebugEnabled() bool {
	return isDebug.Load()
}

// Default returns the package-level logger.
func Default() *Logger {
	return logger
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...Field) *Logger {
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	return &Logger{entry: l.entry.WithFields(data), file: l.file, min: l.min}
}

// WithError returns a child logger describing err, including its kind and
// the path, parameter or rule name carried by typed errors.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l.With(F("error", "<nil>"))
	}
	fields := []Field{
		F("error", err.Error()),
		F("error_kind", int(errors.KindOf(err))),
	}
	var fileErr *errors.FileError
	if errors.As(err, &fileErr) && fileErr.Path() != "" {
		fields = append(fields, F("path", fileErr.Path()))
	}
	var configErr *errors.ConfigError
	if errors.As(err, &configErr) && configErr.Param() != "" {
		fields = append(fields, F("param", configErr.Param()))
	}
	var ruleErr *errors.RuleError
	if errors.As(err, &ruleErr) && ruleErr.RuleName() != "" {
		fields = append(fields, F("rule_name", ruleErr.RuleName()))
	}
	return l.With(fields...)
}

// WithContext attaches ctx to the entry. Nothing is extracted from it yet.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	return &Logger{entry: l.entry.WithContext(ctx), file: l.file, min: l.min}
}

// Close closes the log file opened by WithFile, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.output(2, logrus.DebugLevel, format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.output(2, logrus.DebugLevel, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.output(2, logrus.InfoLevel, format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.output(2, logrus.InfoLevel, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.output(2, logrus.WarnLevel, format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.output(2, logrus.WarnLevel, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.output(2, logrus.ErrorLevel, format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.output(2, logrus.ErrorLevel, format, args...)
}

func (l *Logger) output(depth int, level logrus.Level, format string, args ...interface{}) {
	if !l.enabled(level) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	entry := l.entry
	if _, file, line, ok := runtime.Caller(depth); ok {
		entry = entry.WithField("caller", fmt.Sprintf("%s:%d", filepath.Base(file), line))
	}
	entry.Log(level, msg)
}

func (l *Logger) enabled(level logrus.Level) bool {
	if level == logrus.DebugLevel {
		return isDebug.Load() || l.min >= logrus.DebugLevel
	}
	return level <= l.min
}

// Package-level helpers log through the default logger.

func Info(format string, args ...interface{}) {
	logger.output(2, logrus.InfoLevel, format, args...)
}

func Infof(format string, args ...interface{}) {
	logger.output(2, logrus.InfoLevel, format, args...)
}

// Debug logs a message only when debug output is enabled
func Debug(format string, args ...interface{}) {
	logger.output(2, logrus.DebugLevel, format, args...)
}

// Debugf logs a formatted message only when debug output is enabled
func Debugf(format string, args ...interface{}) {
	logger.output(2, logrus.DebugLevel, format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	logger.output(2, logrus.WarnLevel, format, args...)
}

// Warnf logs a formatted warning message
func Warnf(format string, args ...interface{}) {
	logger.output(2, logrus.WarnLevel, format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	logger.output(2, logrus.ErrorLevel, format, args...)
}

// Errorf logs a formatted error message
func Errorf(format string, args ...interface{}) {
	logger.output(2, logrus.ErrorLevel, format, args...)
}

// LogWithFields returns the default logger with fields attached.
func LogWithFields(fields ...Field) *Logger {
	return logger.With(fields...)
}

// LogWithError returns the default logger describing err.
func LogWithError(err error) *Logger {
	return logger.WithError(err)
}

// LogError logs err at error level with a message.
func LogError(err error, msg string) {
	logger.WithError(err).output(2, logrus.ErrorLevel, "%s", msg)
}

// textFormatter renders "[2006-01-02 15:04:05] LEVEL: message key=value".
type textFormatter struct{}

func (f *textFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[%s] %s: %s", e.Time.Format("2006-01-02 15:04:05"), strings.ToUpper(e.Level.String()), e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k == "caller" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	if caller, ok := e.Data["caller"]; ok {
		fmt.Fprintf(&b, " (%v)", caller)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// SetFormat switches the package-level logger to "json" or "text" output
// on stdout.
func SetFormat(format string) {
	Configure(WithFormat(format))
}
