package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// RecordedRequest is one call received by FakeBackend
type RecordedRequest struct {
	Method   string
	Path     string
	Form     map[string]string
	FileName string
	FileData []byte
	Body     []byte
}

// ChatFunc answers a /chat message with a status code and JSON body
type ChatFunc func(message string) (int, interface{})

// FakeBackend is an in-process stand-in for the analysis service
type FakeBackend struct {
	Server *httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
	tables   []string
	status   map[string]int
	current  json.RawMessage
	reports  map[string]json.RawMessage
	runs     []map[string]string
	chat     ChatFunc
	gate     map[string]chan struct{}
}

// NewFakeBackend starts a fake service that is closed when the test ends.
// It serves no report until one is set.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	b := &FakeBackend{
		tables:  []string{},
		status:  make(map[string]int),
		reports: make(map[string]json.RawMessage),
		runs:    []map[string]string{},
		gate:    make(map[string]chan struct{}),
		chat: func(message string) (int, interface{}) {
			return http.StatusOK, map[string]string{"status": "success", "answer": "echo: " + message}
		},
	}

	r := chi.NewRouter()
	r.Use(b.record)
	r.Get("/", b.home)
	r.Post("/list-tables", b.listTables)
	r.Post("/run-analysis", b.runAnalysis)
	r.Get("/clean-report", b.cleanReport)
	r.Get("/clean-report/runs", b.listRuns)
	r.Get("/clean-report/{loadID}", b.reportByID)
	r.Post("/chat", b.chatHandler)

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the base URL of the fake service
func (b *FakeBackend) URL() string {
	return b.Server.URL
}

// SetTables sets the /list-tables answer
func (b *FakeBackend) SetTables(tables ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tables = tables
}

// SetStatus forces a status code for a route path; 0 restores normal behavior
func (b *FakeBackend) SetStatus(path string, code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status[path] = code
}

// SetCurrentReport sets the data served by /clean-report. Empty clears it.
func (b *FakeBackend) SetCurrentReport(data string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if data == "" {
		b.current = nil
		return
	}
	b.current = json.RawMessage(data)
}

// AddRun registers a past run and its report data
func (b *FakeBackend) AddRun(loadID, loadDatetime, data string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runs = append(b.runs, map[string]string{"load_id": loadID, "load_datetime": loadDatetime})
	b.reports[loadID] = json.RawMessage(data)
}

// SetChat replaces the /chat responder
func (b *FakeBackend) SetChat(fn ChatFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chat = fn
}

// Hold makes requests to path block until the returned release func is called
func (b *FakeBackend) Hold(path string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.gate[path] = ch
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.gate, path)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Requests returns a copy of everything received so far
func (b *FakeBackend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RecordedRequest, len(b.requests))
	copy(out, b.requests)
	return out
}

// RequestCount counts received requests for path
func (b *FakeBackend) RequestCount(path string) int {
	n := 0
	for _, req := range b.Requests() {
		if req.Path == path {
			n++
		}
	}
	return n
}

func (b *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := RecordedRequest{Method: r.Method, Path: r.URL.Path}
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			rec.Form = make(map[string]string)
			for k, v := range r.MultipartForm.Value {
				if len(v) > 0 {
					rec.Form[k] = v[0]
				}
			}
			if files := r.MultipartForm.File["private_key_file"]; len(files) > 0 {
				rec.FileName = files[0].Filename
				if f, err := files[0].Open(); err == nil {
					rec.FileData, _ = io.ReadAll(f)
					f.Close()
				}
			}
		} else if r.Body != nil {
			rec.Body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(rec.Body))
		}

		b.mu.Lock()
		b.requests = append(b.requests, rec)
		gate := b.gate[r.URL.Path]
		code := b.status[r.URL.Path]
		b.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if code != 0 {
			writeJSON(w, code, map[string]string{"status": "error", "message": "forced failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *FakeBackend) home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   "Fake Analysis API",
		"endpoints": []string{"/run-analysis", "/list-tables", "/clean-report", "/clean-report/runs", "/clean-report/<load_id>"},
	})
}

func (b *FakeBackend) listTables(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	tables := b.tables
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "tables": tables, "count": len(tables)})
}

func (b *FakeBackend) runAnalysis(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "data": map[string]string{}})
}

func (b *FakeBackend) cleanReport(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	current := b.current
	b.mu.Unlock()
	if current == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": "No reports found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "data": current})
}

func (b *FakeBackend) listRuns(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	runs := b.runs
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, runs)
}

func (b *FakeBackend) reportByID(w http.ResponseWriter, r *http.Request) {
	loadID, err := url.PathUnescape(chi.URLParam(r, "loadID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad load id"})
		return
	}
	b.mu.Lock()
	data, ok := b.reports[loadID]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Report not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"load_id": loadID, "data": data})
}

func (b *FakeBackend) chatHandler(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	fn := b.chat
	b.mu.Unlock()

	var payload struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	code, body := fn(payload.Message)
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
