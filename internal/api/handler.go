package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mlavrik/sigscout/internal/orchestrator"
	"github.com/mlavrik/sigscout/internal/signal"
	"github.com/mlavrik/sigscout/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Scanner runs one orchestration cycle for a widget chat request.
type Scanner interface {
	Scan(ctx context.Context, req orchestrator.ChatRequest) (orchestrator.Result, error)
}

// LogExporter exposes the signal log for download.
type LogExporter interface {
	Export() ([]byte, error)
}

// Archive is the saved-signals store used by the save/list endpoints.
type Archive interface {
	SaveSignal(sig storage.SavedSignal) error
	ListSignals(limit int) ([]storage.SavedSignal, error)
}

type Deps struct {
	Scanner Scanner
	Log     LogExporter
	Archive Archive
}

// NewHandler returns the widget-facing HTTP API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/api/chat", handleChat(deps))
	r.Get("/api/download_csv", handleDownloadCSV(deps))
	r.Get("/api/saved", handleListSaved(deps))
	r.Post("/api/save", handleSave(deps))
	r.Get("/api/config", handleConfig)

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req orchestrator.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		res, err := deps.Scanner.Scan(r.Context(), req)
		if err != nil {
			switch orchestrator.CodeOf(err) {
			case orchestrator.ErrorTimeout:
				httpError(w, http.StatusGatewayTimeout, "timeout_error", "agent did not finish in time: %v", err)
			default:
				httpError(w, http.StatusInternalServerError, "api_error", "scan failed: %v", err)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if res.Card != nil {
			json.NewEncoder(w).Encode(res.Card)
			return
		}
		json.NewEncoder(w).Encode(res.Reply)
	}
}

func handleDownloadCSV(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := deps.Log.Export()
		if errors.Is(err, storage.ErrNotFound) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintln(w, "No signals logged yet.")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "exporting log: %v", err)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="signals.csv"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}
}

// saveRequest mirrors the widget's save payload. Field defaults match the
// ones applied to agent payloads.
type saveRequest struct {
	Title     string `json:"title"`
	Score     int    `json:"score"`
	Mission   string `json:"mission"`
	Archetype string `json:"archetype"`
	Hook      string `json:"hook"`
	SourceURL string `json:"sourceURL"`
	URL       string `json:"url"`
	Lenses    string `json:"lenses"`
}

func handleSave(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req saveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		sourceURL := req.SourceURL
		if sourceURL == "" {
			sourceURL = req.URL
		}
		rec := signal.Record{
			Title:     req.Title,
			Score:     req.Score,
			Mission:   req.Mission,
			Archetype: req.Archetype,
			Hook:      req.Hook,
			SourceURL: sourceURL,
			Lenses:    req.Lenses,
		}.Normalize()

		sig := storage.SavedSignal{
			ID:        uuid.New().String(),
			CreatedAt: time.Now().UTC(),
			Title:     rec.Title,
			Score:     rec.Score,
			Mission:   rec.Mission,
			Archetype: rec.Archetype,
			Hook:      rec.Hook,
			SourceURL: rec.SourceURL,
			Lenses:    rec.Lenses,
		}
		if err := deps.Archive.SaveSignal(sig); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save signal: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "success", "id": sig.ID})
	}
}

func handleListSaved(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 100, 500)

		signals, err := deps.Archive.ListSignals(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list signals: %v", err)
			return
		}
		if signals == nil {
			signals = []storage.SavedSignal{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(signals)
	}
}

// handleConfig returns the public settings the widget needs at startup.
func handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"export_url": "/api/download_csv",
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
