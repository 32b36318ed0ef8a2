// Package eventlog records agent messages to daily rotated JSONL files so a
// run's operator transcript can be read back after the terminal is gone.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"autogippity/pkg/logx"
	"autogippity/pkg/proto"
)

// Event is one logged agent message.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	Position  string    `json:"position"`
	Statement string    `json:"statement"`
	Kind      string    `json:"kind"`
}

// Writer appends events to events-YYYY-MM-DD.jsonl in its directory.
type Writer struct {
	now         func() time.Time
	currentFile *os.File
	logDir      string
	currentDate string
	mu          sync.Mutex
}

// NewWriter creates the log directory and opens today's file.
func NewWriter(logDir string) (*Writer, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &Writer{logDir: logDir, now: time.Now}
	if err := w.rotateIfNeeded(); err != nil {
		return nil, fmt.Errorf("failed to initialize log file: %w", err)
	}
	return w, nil
}

// Write appends ev as one JSON line. A zero timestamp is set to now.
func (w *Writer) Write(ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return fmt.Errorf("event log %s is closed", w.logDir)
	}
	if err := w.rotateIfNeeded(); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = w.now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.currentFile.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// ForRun returns a Notifier that logs messages tagged with runID. Write
// failures are logged and dropped so a full disk never stops a run.
func (w *Writer) ForRun(runID string) proto.Notifier {
	return proto.NotifierFunc(func(msg proto.AgentMessage) {
		err := w.Write(Event{
			RunID:     runID,
			Position:  msg.Position,
			Statement: msg.Statement,
			Kind:      msg.Kind.String(),
		})
		if err != nil {
			logx.Warnf("event log: %v", err)
		}
	})
}

func (w *Writer) rotateIfNeeded() error {
	newDate := w.now().Format("2006-01-02")
	if w.currentFile != nil && w.currentDate == newDate {
		return nil
	}

	if w.currentFile != nil {
		if err := w.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close current log file: %w", err)
		}
	}

	path := filepath.Join(w.logDir, fileName(newDate))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	w.currentFile = file
	w.currentDate = newDate
	return nil
}

func fileName(date string) string {
	return "events-" + date + ".jsonl"
}

// Close closes the current log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return nil
	}
	err := w.currentFile.Close()
	w.currentFile = nil
	if err != nil {
		return fmt.Errorf("failed to close event log file: %w", err)
	}
	return nil
}

// CurrentLogFile returns the path of the active log file, or "" once closed.
func (w *Writer) CurrentLogFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return ""
	}
	return filepath.Join(w.logDir, fileName(w.currentDate))
}

// ReadEvents parses every event in a log file, in write order.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	events := []Event{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s line %d: %w", path, line, err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return events, nil
}

// ReadRun returns the events of one run across every log file in logDir.
func ReadRun(logDir, runID string) ([]Event, error) {
	files, err := ListLogFiles(logDir)
	if err != nil {
		return nil, err
	}

	var out []Event
	for _, f := range files {
		events, err := ReadEvents(f)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			if ev.RunID == runID {
				out = append(out, ev)
			}
		}
	}
	return out, nil
}

// ListLogFiles returns the event log files in logDir, oldest first.
func ListLogFiles(logDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(logDir, "events-*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}
