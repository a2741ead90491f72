package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"harmony-kit/internal"
)

// ObservabilityLogger provides structured JSON logging using logrus
type ObservabilityLogger struct {
	logger *logrus.Logger
	file   *os.File
}

// Component constants for consistent labeling
const (
	ComponentTokenizer       = "tokenizer"
	ComponentStrictParser    = "strict_parser"
	ComponentStreamExtractor = "stream_extractor"
	ComponentRenderer        = "renderer"
	ComponentPipeline        = "pipeline"
	ComponentConfig          = "configuration"
)

// Category constants for log classification
const (
	CategoryRequest    = "request"
	CategoryParse      = "parse"
	CategoryRender     = "render"
	CategoryStream     = "stream"
	CategoryValidation = "validation"
	CategoryError      = "error"
	CategoryDebug      = "debug"
)

const serviceName = "harmony-kit"

// New creates a logger writing JSON lines to w at the given level
// (debug, info, warn or error).
func New(w io.Writer, level string) (*ObservabilityLogger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetLevel(lvl)

	return &ObservabilityLogger{logger: logger}, nil
}

// NewObservabilityLogger creates a logger appending to harmony-kit.jsonl in
// logDir. An empty logDir logs to stderr.
func NewObservabilityLogger(logDir, level string) (*ObservabilityLogger, error) {
	if logDir == "" {
		return New(os.Stderr, level)
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	logPath := filepath.Join(logDir, serviceName+".jsonl")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	o, err := New(file, level)
	if err != nil {
		file.Close()
		return nil, err
	}
	o.file = file
	return o, nil
}

// Discard returns a logger that drops everything, for tests and library use
func Discard() *ObservabilityLogger {
	o, _ := New(io.Discard, "error")
	return o
}

// Close closes the log file
func (o *ObservabilityLogger) Close() error {
	if o.file != nil {
		return o.file.Close()
	}
	return nil
}

// createEntry creates a logrus entry with standard fields
func (o *ObservabilityLogger) createEntry(ctx context.Context, component, category string, fields map[string]interface{}) *logrus.Entry {
	entry := o.logger.WithFields(logrus.Fields{
		"service":   serviceName,
		"component": component,
		"category":  category,
	})

	if turnID := internal.GetTurnID(ctx); turnID != "" {
		entry = entry.WithField("turn_id", turnID)
	}

	if fields != nil {
		entry = entry.WithFields(fields)
	}

	return entry
}

// Debug logs a debug message
func (o *ObservabilityLogger) Debug(ctx context.Context, component, category, message string, fields map[string]interface{}) {
	o.createEntry(ctx, component, category, fields).Debug(message)
}

// Info logs an info message
func (o *ObservabilityLogger) Info(ctx context.Context, component, category, message string, fields map[string]interface{}) {
	o.createEntry(ctx, component, category, fields).Info(message)
}

// Warn logs a warning message
func (o *ObservabilityLogger) Warn(ctx context.Context, component, category, message string, fields map[string]interface{}) {
	o.createEntry(ctx, component, category, fields).Warn(message)
}

// Error logs an error message
func (o *ObservabilityLogger) Error(ctx context.Context, component, category, message string, fields map[string]interface{}) {
	o.createEntry(ctx, component, category, fields).Error(message)
}

// ParseFailure logs a strict parse failure with its kind and token
func (o *ObservabilityLogger) ParseFailure(ctx context.Context, kind, token string, position int, err error) {
	o.Warn(ctx, ComponentStrictParser, CategoryParse, "Strict parse failed", map[string]interface{}{
		"kind":     kind,
		"token":    token,
		"position": position,
		"error":    err.Error(),
	})
}

// StreamSnapshot logs one extractor update at debug level
func (o *ObservabilityLogger) StreamSnapshot(ctx context.Context, channel string, complete bool, bufferBytes int) {
	o.Debug(ctx, ComponentStreamExtractor, CategoryStream, "Snapshot updated", map[string]interface{}{
		"channel":      channel,
		"complete":     complete,
		"buffer_bytes": bufferBytes,
	})
}
