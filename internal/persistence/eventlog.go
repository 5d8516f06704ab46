package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/digsim/internal/engine"
)

// EventLog appends events as zstd-compressed JSON lines, one file per run
// per UTC day.
type EventLog struct {
	dir string

	mu     sync.Mutex
	runID  string
	curDay string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

// LogEntry is one line of the event log.
type LogEntry struct {
	RunID string `json:"run_id"`
	engine.Event
}

// NewEventLog creates a log under dir. Files are opened lazily.
func NewEventLog(dir, runID string) *EventLog {
	return &EventLog{dir: dir, runID: runID}
}

// SetRun closes the current file and starts writing to a new run's file.
func (l *EventLog) SetRun(runID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runID = runID
	l.curDay = ""
	return l.closeLocked()
}

// Write appends events and flushes them through the encoder.
func (l *EventLog) Write(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	day := time.Now().UTC().Format("2006-01-02")
	if day != l.curDay {
		if err := l.rotateLocked(day); err != nil {
			return err
		}
	}

	for _, e := range events {
		b, err := json.Marshal(LogEntry{RunID: l.runID, Event: e})
		if err != nil {
			return err
		}
		if _, err := l.w.Write(b); err != nil {
			return err
		}
		if err := l.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := l.w.Flush(); err != nil {
		return err
	}
	return l.enc.Flush()
}

// Close flushes and closes the current file.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

// Path returns the file a run's events go to on a given day.
func (l *EventLog) Path(runID, day string) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s-%s.jsonl.zst", runID, day))
}

func (l *EventLog) rotateLocked(day string) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.Path(l.runID, day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f = f
	l.enc = enc
	l.w = bufio.NewWriterSize(enc, 64*1024)
	l.curDay = day
	return nil
}

func (l *EventLog) closeLocked() error {
	var err error
	if l.w != nil {
		_ = l.w.Flush()
	}
	if l.enc != nil {
		err = l.enc.Close()
		l.enc = nil
	}
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
	l.w = nil
	return err
}

// ReadEventLog decodes every entry of a compressed log file.
func ReadEventLog(path string) ([]LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []LogEntry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e LogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("decode log line %d: %w", len(out)+1, err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
