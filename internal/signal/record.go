package signal

import (
	"encoding/json"
	"fmt"
)

// Placeholder values written when the agent omits a field. The log never
// contains empty cells for these columns.
const (
	DefaultTitle     = "Untitled Signal"
	DefaultMission   = "Unassigned"
	DefaultArchetype = "Unknown"
	DefaultLenses    = "General"
)

// Record is one structured signal observation emitted by the agent.
// Immutable once parsed; a record is written to the log exactly once and
// not retained across requests.
type Record struct {
	Title     string `json:"title"`
	Score     int    `json:"score"`
	Mission   string `json:"mission"`
	Archetype string `json:"archetype"`
	Hook      string `json:"hook"`
	SourceURL string `json:"sourceURL"`
	Lenses    string `json:"lenses"`
}

// recordPayload mirrors the tool-call argument JSON. The agent has been
// observed sending the source link under either "sourceURL" or "url".
type recordPayload struct {
	Title     string `json:"title"`
	Score     int    `json:"score"`
	Mission   string `json:"mission"`
	Archetype string `json:"archetype"`
	Hook      string `json:"hook"`
	SourceURL string `json:"sourceURL"`
	URL       string `json:"url"`
	Lenses    string `json:"lenses"`
}

// ParseRecord decodes the string-encoded arguments of a display_signal_card
// tool call into a complete Record, filling placeholders for absent fields
// and clamping score into 0..100. The source URL is not validated; it is
// carried verbatim.
func ParseRecord(args []byte) (Record, error) {
	var p recordPayload
	if err := json.Unmarshal(args, &p); err != nil {
		return Record{}, fmt.Errorf("decoding signal payload: %w", err)
	}

	r := Record{
		Title:     p.Title,
		Score:     p.Score,
		Mission:   p.Mission,
		Archetype: p.Archetype,
		Hook:      p.Hook,
		SourceURL: p.SourceURL,
		Lenses:    p.Lenses,
	}
	if r.SourceURL == "" {
		r.SourceURL = p.URL
	}
	return r.withDefaults(), nil
}

func (r Record) withDefaults() Record {
	if r.Title == "" {
		r.Title = DefaultTitle
	}
	if r.Mission == "" {
		r.Mission = DefaultMission
	}
	if r.Archetype == "" {
		r.Archetype = DefaultArchetype
	}
	if r.Lenses == "" {
		r.Lenses = DefaultLenses
	}
	if r.Score < 0 {
		r.Score = 0
	}
	if r.Score > 100 {
		r.Score = 100
	}
	return r
}

// Normalize applies the same defaulting used for agent payloads to a record
// constructed elsewhere (e.g. the save endpoint).
func (r Record) Normalize() Record {
	return r.withDefaults()
}
