// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apitest provides an in-memory fake of the RAG backend for tests.
//
//	backend := apitest.NewServer(t)
//	backend.QueueReloadStatus(true, "", true, "", false, "")
//	client := api.NewClientWithConfig(&api.ClientConfig{BaseURL: backend.URL()})
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/model"
)

// Credentials accepted by the fake backend.
const (
	Token    = "test-token"
	Password = "secret"
)

// Server is a fake backend. Behaviour can be adjusted per test; by default
// it is a healthy backend that echoes chat messages.
type Server struct {
	srv *httptest.Server

	mu        sync.Mutex
	calls     map[string]int
	requests  []api.ChatRequest
	documents []api.Document
	statuses  []model.ReloadStatus
	uploads   map[string][]byte

	token       string
	password    string
	user        api.User
	chatFunc    func(req api.ChatRequest) (*api.ChatResponse, int, string)
	startStatus string
	healthState string
	statsFail   bool
	delay       time.Duration
}

// NewServer starts a fake backend that is closed with the test.
func NewServer(t testing.TB) *Server {
	s := &Server{
		calls:       map[string]int{},
		uploads:     map[string][]byte{},
		token:       Token,
		password:    Password,
		user:        api.User{ID: 1, Email: "admin@example.com", Name: "Admin", Role: "admin"},
		startStatus: api.ReloadStarted,
		healthState: "healthy",
		documents: []api.Document{
			{Filename: "guide.pdf", Title: "Guide", Author: "UNESCO", Type: "Guía", Year: 2021},
			{Filename: "notes.txt", Title: "Notes", Author: "Team", Type: "Investigación", Year: 2024},
		},
	}
	s.srv = httptest.NewServer(s.router())
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the base URL of the fake backend.
func (s *Server) URL() string { return s.srv.URL }

// Close stops the server early, simulating an unreachable backend.
func (s *Server) Close() { s.srv.Close() }

// Calls returns how many times the named route was hit.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// ChatRequests returns the chat bodies received so far.
func (s *Server) ChatRequests() []api.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.ChatRequest(nil), s.requests...)
}

// Uploaded returns the bytes received for filename.
func (s *Server) Uploaded(filename string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.uploads[filename]
	return data, ok
}

// SetDocuments replaces the document list.
func (s *Server) SetDocuments(docs ...api.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = docs
}

// QueueReloadStatus queues status snapshots as (inProgress, lastError) pairs.
// An empty lastError is sent as null. The last snapshot repeats once the
// queue is drained.
func (s *Server) QueueReloadStatus(pairs ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i+1 < len(pairs); i += 2 {
		st := model.ReloadStatus{InProgress: pairs[i].(bool)}
		if msg := pairs[i+1].(string); msg != "" {
			st.LastError = &msg
		}
		if !st.InProgress && st.LastError == nil {
			st.LastResult = map[string]any{"documents": len(s.documents)}
		}
		s.statuses = append(s.statuses, st)
	}
}

// SetChatFunc overrides the chat handler. A nil response makes the server
// answer status with detail.
func (s *Server) SetChatFunc(fn func(req api.ChatRequest) (resp *api.ChatResponse, status int, detail string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatFunc = fn
}

// SetReloadStartStatus sets the status returned when a reload is requested.
func (s *Server) SetReloadStartStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startStatus = status
}

// SetHealth sets the health status; "" makes /api/health answer 503.
func (s *Server) SetHealth(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthState = status
}

// SetStatsFail makes /api/stats answer 500.
func (s *Server) SetStatsFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsFail = fail
}

// SetUser changes the account returned by /api/auth/me and login.
func (s *Server) SetUser(u api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

// SetDelay delays every response.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *Server) hit(route string) {
	s.mu.Lock()
	s.calls[route]++
	delay := s.delay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
}

// =============================================================================
// ROUTES
// =============================================================================

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/auth/login", s.login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/me", s.authed(s.me)).Methods(http.MethodGet)
	r.HandleFunc("/api/chat/", s.chat).Methods(http.MethodPost)
	r.HandleFunc("/api/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", s.stats).Methods(http.MethodGet)
	r.HandleFunc("/api/info", s.info).Methods(http.MethodGet)
	r.HandleFunc("/api/metrics/report", s.authed(s.report)).Methods(http.MethodGet)
	r.HandleFunc("/api/documents/list", s.listDocuments).Methods(http.MethodGet)
	r.HandleFunc("/api/documents/upload", s.authed(s.upload)).Methods(http.MethodPost)
	r.HandleFunc("/api/documents/reload", s.authed(s.reload)).Methods(http.MethodPost)
	r.HandleFunc("/api/documents/reload/status", s.reloadStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/documents/{filename}", s.authed(s.deleteDocument)).Methods(http.MethodDelete)
	return r
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next(w, r)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.hit("login")
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if req.Password != s.password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()
	user.Email = req.Email
	writeJSON(w, http.StatusOK, api.LoginResponse{AccessToken: s.token, TokenType: "bearer", User: &user})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.hit("me")
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	s.hit("chat")
	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	n := len(s.requests)
	fn := s.chatFunc
	s.mu.Unlock()

	if fn != nil {
		resp, status, detail := fn(req)
		if resp == nil {
			writeDetail(w, status, detail)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	score := 0.9
	writeJSON(w, http.StatusOK, api.ChatResponse{
		Response:  "echo: " + req.Message,
		Sources:   []model.Source{{Document: "guide.pdf", Excerpt: "...", RelevanceScore: &score}},
		Metrics:   map[string]any{"query_number": n, "context_used": req.UseRAG, "mode": req.Mode, "model": req.ModelName, "tokens_used": 42, "cost": 0.0001, "latency_ms": 12.5},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.hit("health")
	s.mu.Lock()
	status := s.healthState
	s.mu.Unlock()
	if status == "" {
		writeDetail(w, http.StatusServiceUnavailable, "backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:     status,
		Version:    "1.0.0",
		Components: map[string]string{"vector_store": "operational", "llm": "operational"},
	})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	s.hit("stats")
	s.mu.Lock()
	fail := s.statsFail
	queries := len(s.requests)
	s.mu.Unlock()
	if fail {
		writeDetail(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, api.StatsResponse{
		Status:          "operational",
		TotalQueries:    queries,
		UptimeSeconds:   3725,
		ModelsAvailable: []string{"gemini"},
		RAGStats:        &api.RAGStats{TotalChunks: 120, ChunkSize: 1000, ChunkOverlap: 200},
	})
}

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	s.hit("info")
	writeJSON(w, http.StatusOK, map[string]any{"name": "RAG Chatbot API", "version": "1.0.0"})
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	s.hit("report")
	writeJSON(w, http.StatusOK, api.MetricsReport{
		TotalInteractions: 3,
		DateRange:         api.DateRange{Start: "2025-01-01", End: "2025-01-02"},
		Totals:            api.ReportTotals{CostUSD: 0.003, Tokens: 900, InputTokens: 600, OutputTokens: 300, Citations: 6, ValidCitations: 5},
		Averages:          api.ReportAverages{LatencyMs: 850, Tokens: 300, CostUSD: 0.001, DocsRetrieved: 4, SimilarityScore: 0.8, CitationValidity: 0.83, HallucinationRate: 0.05},
		ByDate: []api.DailyMetrics{
			{Date: "2025-01-01", Count: 2, AvgLatency: 800, TotalCost: 0.002, TotalTokens: 600},
			{Date: "2025-01-02", Count: 1, AvgLatency: 950, TotalCost: 0.001, TotalTokens: 300},
		},
	})
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	s.hit("list")
	s.mu.Lock()
	docs := append([]api.Document(nil), s.documents...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.DocumentList{Documents: docs, Total: len(docs)})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	s.hit("upload")
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "unreadable file")
		return
	}

	s.mu.Lock()
	for _, d := range s.documents {
		if d.Filename == header.Filename {
			s.mu.Unlock()
			writeDetail(w, http.StatusConflict, fmt.Sprintf("El archivo %s ya existe", header.Filename))
			return
		}
	}
	s.uploads[header.Filename] = data
	s.documents = append(s.documents, api.Document{Filename: header.Filename, Size: int64(len(data))})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, api.UploadResponse{Message: "uploaded", Filename: header.Filename, Size: int64(len(data))})
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	s.hit("delete")
	name := mux.Vars(r)["filename"]

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.documents {
		if d.Filename == name {
			s.documents = append(s.documents[:i], s.documents[i+1:]...)
			writeJSON(w, http.StatusOK, api.DeleteResponse{Message: "deleted", Filename: name})
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Documento no encontrado")
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	s.hit("reload")
	s.mu.Lock()
	status := s.startStatus
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.ReloadStartResponse{Status: status})
}

func (s *Server) reloadStatus(w http.ResponseWriter, r *http.Request) {
	s.hit("status")
	s.mu.Lock()
	st := model.ReloadStatus{}
	switch len(s.statuses) {
	case 0:
	case 1:
		st = s.statuses[0]
	default:
		st = s.statuses[0]
		s.statuses = s.statuses[1:]
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
