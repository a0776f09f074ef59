package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/mlavrik/sigscout/internal/orchestrator"
	"github.com/mlavrik/sigscout/internal/signal"
	"github.com/mlavrik/sigscout/internal/storage"
)

// --- mocks ---

type mockScanner struct {
	gotReq orchestrator.ChatRequest
	result orchestrator.Result
	err    error
}

func (m *mockScanner) Scan(_ context.Context, req orchestrator.ChatRequest) (orchestrator.Result, error) {
	m.gotReq = req
	return m.result, m.err
}

type mockExporter struct {
	data []byte
	err  error
}

func (m *mockExporter) Export() ([]byte, error) {
	return m.data, m.err
}

type mockArchive struct {
	saved []storage.SavedSignal
	err   error
}

func (m *mockArchive) SaveSignal(sig storage.SavedSignal) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, sig)
	return nil
}

func (m *mockArchive) ListSignals(limit int) ([]storage.SavedSignal, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := append([]storage.SavedSignal(nil), m.saved...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func testDeps(scanner *mockScanner, log *mockExporter, archive *mockArchive) Deps {
	if scanner == nil {
		scanner = &mockScanner{}
	}
	if log == nil {
		log = &mockExporter{err: storage.ErrNotFound}
	}
	if archive == nil {
		archive = &mockArchive{}
	}
	return Deps{Scanner: scanner, Log: log, Archive: archive}
}

// --- tests ---

func TestHealth(t *testing.T) {
	h := NewHandler(testDeps(nil, nil, nil))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestChat_CardResponse(t *testing.T) {
	card := signal.Render(signal.Record{Title: "X", Score: 85, Hook: "H", SourceURL: "http://u"}.Normalize())
	scanner := &mockScanner{result: orchestrator.Result{Card: &card}}
	h := NewHandler(testDeps(scanner, nil, nil))

	body := `{"messages":[{"role":"user","content":"find signals"}]}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	if len(scanner.gotReq.Messages) != 1 || scanner.gotReq.Messages[0].Content != "find signals" {
		t.Errorf("scanner request = %+v", scanner.gotReq)
	}

	var got signal.Node
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decoding card: %v", err)
	}
	if got.Type != "card" {
		t.Errorf("response type = %q, want card", got.Type)
	}
}

func TestChat_TextResponse(t *testing.T) {
	scanner := &mockScanner{result: orchestrator.Result{
		Reply: &orchestrator.TextReply{Role: "assistant", Content: "nothing new"},
	}}
	h := NewHandler(testDeps(scanner, nil, nil))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"text":"hi"}`))
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var got map[string]string
	json.NewDecoder(rr.Body).Decode(&got)
	if got["role"] != "assistant" || got["content"] != "nothing new" {
		t.Errorf("body = %v", got)
	}
}

func TestChat_UpstreamError(t *testing.T) {
	scanner := &mockScanner{err: &orchestrator.Error{Code: orchestrator.ErrorUpstream, Reason: "run_failed"}}
	h := NewHandler(testDeps(scanner, nil, nil))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"text":"hi"}`))
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Error.Message == "" {
		t.Error("error message is empty")
	}
}

func TestChat_Timeout(t *testing.T) {
	scanner := &mockScanner{err: &orchestrator.Error{Code: orchestrator.ErrorTimeout, Reason: "poll_deadline_exceeded"}}
	h := NewHandler(testDeps(scanner, nil, nil))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"text":"hi"}`))
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rr.Code)
	}
}

func TestChat_InvalidBody(t *testing.T) {
	h := NewHandler(testDeps(nil, nil, nil))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{invalid"))
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestDownloadCSV_Empty(t *testing.T) {
	h := NewHandler(testDeps(nil, &mockExporter{err: storage.ErrNotFound}, nil))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/download_csv", nil)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
}

func TestDownloadCSV_WithContent(t *testing.T) {
	csvData := "TIMESTAMP,TITLE,SCORE,MISSION,ARCHETYPE,HOOK,SOURCE\n2025-06-01T12:00:00Z,X,85,M,A,H,http://u\n"
	h := NewHandler(testDeps(nil, &mockExporter{data: []byte(csvData)}, nil))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/download_csv", nil)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q, want attachment", cd)
	}
	if rr.Body.String() != csvData {
		t.Errorf("body = %q, want the log content including header", rr.Body.String())
	}
}

func TestSaveAndListSaved(t *testing.T) {
	archive := &mockArchive{}
	h := NewHandler(testDeps(nil, nil, archive))

	body := `{"title":"X","score":85,"archetype":"Breakthrough","hook":"H","url":"http://u"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/save", strings.NewReader(body))
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("save status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	if len(archive.saved) != 1 {
		t.Fatalf("saved %d signals, want 1", len(archive.saved))
	}
	got := archive.saved[0]
	if got.SourceURL != "http://u" {
		t.Errorf("SourceURL = %q, want url alias applied", got.SourceURL)
	}
	if got.Mission != signal.DefaultMission {
		t.Errorf("Mission = %q, want defaulted", got.Mission)
	}
	if got.ID == "" {
		t.Error("saved signal has no ID")
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/saved", nil)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rr.Code)
	}
	var listed []storage.SavedSignal
	if err := json.NewDecoder(rr.Body).Decode(&listed); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(listed) != 1 || listed[0].Title != "X" {
		t.Errorf("listed = %+v", listed)
	}
}

func TestListSaved_EmptyIsArray(t *testing.T) {
	h := NewHandler(testDeps(nil, nil, &mockArchive{}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/saved", nil)
	h.ServeHTTP(rr, req)

	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestConfig(t *testing.T) {
	h := NewHandler(testDeps(nil, nil, nil))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	h.ServeHTTP(rr, req)

	var got map[string]string
	json.NewDecoder(rr.Body).Decode(&got)
	if got["export_url"] == "" {
		t.Errorf("body = %v, want export_url", got)
	}
}
