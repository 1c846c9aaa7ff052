package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transcript records one review session to its own file: the compiled
// prompt, the agent's output and the final outcome.
type Transcript struct {
	sessionID string
	path      string
	file      *os.File
	mu        sync.Mutex
	startTime time.Time
	now       func() time.Time
}

// StartTranscript creates session_<id>_<timestamp>.log under dir
func StartTranscript(dir string) (*Transcript, error) {
	if dir == "" {
		dir = "review_logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	id := uuid.NewString()
	start := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("session_%s_%s.log", id, start.Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	t := &Transcript{sessionID: id, path: path, file: f, startTime: start, now: time.Now}
	fmt.Fprintf(f, "REVIEWPILOT SESSION LOG\nSession ID: %s\nStart Time: %s\nLog Format: [HH:MM:SS.mmm] [+duration] message\n\n",
		id, start.Format("2006-01-02 15:04:05"))
	return t, nil
}

// SessionID returns the generated id; empty on a nil transcript
func (t *Transcript) SessionID() string {
	if t == nil {
		return ""
	}
	return t.sessionID
}

// Path returns the transcript file path
func (t *Transcript) Path() string {
	if t == nil {
		return ""
	}
	return t.path
}

// Log appends one timestamped line. Safe to call on a nil transcript.
func (t *Transcript) Log(format string, args ...interface{}) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeLine(fmt.Sprintf(format, args...))
}

// Section writes a banner line
func (t *Transcript) Section(title string) {
	sep := strings.Repeat("=", 80)
	t.Log("%s", sep)
	t.Log("= %s", title)
	t.Log("%s", sep)
}

// Block writes a titled multi-line body verbatim
func (t *Transcript) Block(title, body string) {
	if t == nil {
		return
	}
	t.Section(title)
	t.Log("Length: %d characters", len(body))
	t.mu.Lock()
	if t.file != nil {
		_, _ = io.WriteString(t.file, strings.TrimRight(body, "\n")+"\n")
	}
	t.mu.Unlock()
}

// Writer returns a writer that appends raw output to the transcript, or
// io.Discard on a nil transcript.
func (t *Transcript) Writer() io.Writer {
	if t == nil {
		return io.Discard
	}
	return transcriptWriter{t}
}

type transcriptWriter struct{ t *Transcript }

func (w transcriptWriter) Write(p []byte) (int, error) {
	w.t.mu.Lock()
	defer w.t.mu.Unlock()
	if w.t.file == nil {
		return len(p), nil
	}
	return w.t.file.Write(p)
}

// Close writes the footer and closes the file
func (t *Transcript) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	t.writeLine(fmt.Sprintf("Session completed. Total duration: %v", t.now().Sub(t.startTime).Round(time.Millisecond)))
	err := t.file.Close()
	t.file = nil
	return err
}

func (t *Transcript) writeLine(msg string) {
	if t.file == nil {
		return
	}
	now := t.now()
	fmt.Fprintf(t.file, "[%s] [+%v] %s\n", now.Format("15:04:05.000"), now.Sub(t.startTime).Round(time.Millisecond), msg)
}
