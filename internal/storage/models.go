package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record (or the log itself) does
// not exist.
var ErrNotFound = errors.New("not found")

// SavedSignal is a signal the user chose to keep, persisted in SQLite.
type SavedSignal struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Score     int       `json:"score"`
	Mission   string    `json:"mission"`
	Archetype string    `json:"archetype"`
	Hook      string    `json:"hook"`
	SourceURL string    `json:"source_url"`
	Lenses    string    `json:"lenses"`
}
