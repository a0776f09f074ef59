package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/mlavrik/sigscout/internal/signal"
)

// logHeader is the fixed column set of the signal log. The schema is
// versionless; changing it requires a migration of existing logs.
var logHeader = []string{"TIMESTAMP", "TITLE", "SCORE", "MISSION", "ARCHETYPE", "HOOK", "SOURCE"}

// SignalLog is an append-only CSV log of visualized signals. Appends are
// serialized by a mutex so concurrent requests produce whole rows and a
// single header.
type SignalLog struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewSignalLog creates a log that appends to the CSV file at path. The file
// is created on first append, not here.
func NewSignalLog(path string) *SignalLog {
	return &SignalLog{path: path, now: time.Now}
}

// Append writes one complete row for the record, stamping it with the
// current time. The header row is written only when the file is created.
func (l *SignalLog) Append(rec signal.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening signal log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat signal log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(logHeader); err != nil {
			return fmt.Errorf("writing log header: %w", err)
		}
	}

	row := []string{
		l.now().UTC().Format(time.RFC3339),
		rec.Title,
		strconv.Itoa(rec.Score),
		rec.Mission,
		rec.Archetype,
		rec.Hook,
		rec.SourceURL,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("writing log row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing signal log: %w", err)
	}
	return nil
}

// Export returns the full log content, or ErrNotFound when no record has
// ever been appended.
func (l *SignalLog) Export() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading signal log: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}
