// Package eventlog appends raw stream events and assembled alerts to
// timestamped JSON-lines files for diagnostics. Nothing reads them back.
package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const timestampLayout = "2006_01_02_150405"

// Recorder records diagnostic copies of processed data.
type Recorder interface {
	RecordEvent(at time.Time, raw []byte) error
	RecordAlert(at time.Time, alert any) error
}

// Nop discards everything. Used when event logging is disabled.
type Nop struct{}

// RecordEvent implements Recorder.
func (Nop) RecordEvent(time.Time, []byte) error { return nil }

// RecordAlert implements Recorder.
func (Nop) RecordAlert(time.Time, any) error { return nil }

// Writer appends JSON lines to event_<ts>.json and alert_<ts>.json in dir.
type Writer struct {
	dir string
	mu  sync.Mutex
}

// NewWriter creates the log directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create event log dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// RecordEvent appends the raw event, compacted to one line.
func (w *Writer) RecordEvent(at time.Time, raw []byte) error {
	var line bytes.Buffer
	if err := json.Compact(&line, raw); err != nil {
		return fmt.Errorf("compact event: %w", err)
	}
	return w.append(w.path("event", at), line.Bytes())
}

// RecordAlert appends the alert serialized as JSON.
func (w *Writer) RecordAlert(at time.Time, alert any) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return w.append(w.path("alert", at), data)
}

func (w *Writer) path(kind string, at time.Time) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.json", kind, at.Format(timestampLayout)))
}

func (w *Writer) append(path string, line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
