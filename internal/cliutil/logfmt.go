package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/satproc/warpinit/internal/supervisor"
)

// LogRecord represents a structured log event ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Level     string    `json:"level"`
	Event     string    `json:"event"`
	Message   string    `json:"msg"`
	PID       int       `json:"pid,omitempty"`
	ExitCode  *int      `json:"exitCode,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewLogRecord converts a supervisor event into a structured log record.
func NewLogRecord(event supervisor.Event) LogRecord {
	record := LogRecord{
		Timestamp: event.Timestamp,
		Level:     "info",
		Event:     string(event.Type),
		Message:   event.Message,
		PID:       event.PID,
	}
	if event.Type == supervisor.EventTypeExited {
		code := event.ExitCode
		record.ExitCode = &code
		if code != 0 {
			record.Level = "warn"
		}
	}
	if event.Err != nil {
		record.Level = "error"
		record.Error = event.Err.Error()
	}
	return record
}

// EncodeLogEvent encodes a log event to JSON, reporting errors to stderr if needed.
func EncodeLogEvent(enc *json.Encoder, stderr io.Writer, event supervisor.Event) {
	if enc == nil {
		return
	}
	record := NewLogRecord(event)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode log: %v\n", err)
	}
}
