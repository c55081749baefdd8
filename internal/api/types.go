// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"strings"

	"github.com/jeranaias/ragdesk-tui/internal/model"
)

// =============================================================================
// AUTH
// =============================================================================

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user,omitempty"`
}

// User is the authenticated account.
type User struct {
	ID    any    `json:"id,omitempty"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && strings.EqualFold(u.Role, "admin")
}

// =============================================================================
// CHAT
// =============================================================================

// ChatRequest is the body of POST /api/chat/.
type ChatRequest struct {
	Message   string     `json:"message"`
	ThreadID  string     `json:"thread_id"`
	UseRAG    bool       `json:"use_rag"`
	ModelName string     `json:"model_name"`
	Mode      model.Mode `json:"mode"`
}

// ChatResponse is the backend's answer to one chat turn.
type ChatResponse struct {
	Response  string         `json:"response"`
	Sources   []model.Source `json:"sources"`
	Metrics   map[string]any `json:"metrics"`
	Timestamp string         `json:"timestamp"`
	ThreadID  string         `json:"thread_id,omitempty"`
}

// =============================================================================
// SYSTEM
// =============================================================================

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Healthy reports whether the backend declared itself healthy.
func (h *HealthResponse) Healthy() bool {
	return h != nil && strings.EqualFold(h.Status, "healthy")
}

// RAGStats describes the retrieval index.
type RAGStats struct {
	TotalChunks  int `json:"total_chunks"`
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
}

// StatsResponse is returned by GET /api/stats.
type StatsResponse struct {
	Status          string    `json:"status"`
	TotalQueries    int       `json:"total_queries"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
	ModelsAvailable []string  `json:"models_available"`
	RAGStats        *RAGStats `json:"rag_stats,omitempty"`
}

// =============================================================================
// METRICS REPORT
// =============================================================================

// DateRange bounds the interactions in a report.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ReportTotals are summed over every interaction.
type ReportTotals struct {
	CostUSD        float64 `json:"cost_usd"`
	Tokens         int     `json:"tokens"`
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	Citations      int     `json:"citations"`
	ValidCitations int     `json:"valid_citations"`
}

// ReportAverages are per-interaction means.
type ReportAverages struct {
	LatencyMs         float64 `json:"latency_ms"`
	Tokens            float64 `json:"tokens"`
	CostUSD           float64 `json:"cost_usd"`
	DocsRetrieved     float64 `json:"docs_retrieved"`
	SimilarityScore   float64 `json:"similarity_score"`
	CitationValidity  float64 `json:"citation_validity"`
	HallucinationRate float64 `json:"hallucination_rate"`
}

// DailyMetrics is one row of the per-day breakdown.
type DailyMetrics struct {
	Date        string  `json:"date"`
	Count       int     `json:"count"`
	AvgLatency  float64 `json:"avg_latency"`
	TotalCost   float64 `json:"total_cost"`
	TotalTokens int     `json:"total_tokens"`
}

// MetricsReport is returned by GET /api/metrics/report.
type MetricsReport struct {
	TotalInteractions int            `json:"total_interactions"`
	DateRange         DateRange      `json:"date_range"`
	Totals            ReportTotals   `json:"totals"`
	Averages          ReportAverages `json:"averages"`
	ByDate            []DailyMetrics `json:"by_date"`
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// Document is one entry in the backend's document store.
type Document struct {
	Filename   string `json:"filename"`
	Title      string `json:"title,omitempty"`
	Author     string `json:"author,omitempty"`
	Year       int    `json:"year,omitempty"`
	Type       string `json:"type,omitempty"`
	Size       int64  `json:"size,omitempty"`
	Chunks     int    `json:"chunks,omitempty"`
	UploadedAt string `json:"uploaded_at,omitempty"`
}

// DisplayTitle returns the title, falling back to the filename.
func (d Document) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Filename
}

// UnmarshalJSON accepts the Spanish catalogue keys (titulo, autor, año, tipo)
// and "name" as aliases.
func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	var aux struct {
		plain
		Name   string `json:"name"`
		Titulo string `json:"titulo"`
		Autor  string `json:"autor"`
		Anio   int    `json:"año"`
		Tipo   string `json:"tipo"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*d = Document(aux.plain)
	if d.Filename == "" {
		d.Filename = aux.Name
	}
	if d.Title == "" {
		d.Title = aux.Titulo
	}
	if d.Author == "" {
		d.Author = aux.Autor
	}
	if d.Year == 0 {
		d.Year = aux.Anio
	}
	if d.Type == "" {
		d.Type = aux.Tipo
	}
	return nil
}

// DocumentList is returned by GET /api/documents/list.
type DocumentList struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
}

// UnmarshalJSON accepts either {"documents": [...]} or a bare array.
func (l *DocumentList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var docs []Document
		if err := json.Unmarshal(data, &docs); err != nil {
			return err
		}
		*l = DocumentList{Documents: docs, Total: len(docs)}
		return nil
	}

	type plain DocumentList
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = DocumentList(p)
	if l.Total == 0 {
		l.Total = len(l.Documents)
	}
	return nil
}

// UploadResponse is returned by a successful upload.
type UploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Size     int64  `json:"size,omitempty"`
}

// DeleteResponse is returned by a successful delete.
type DeleteResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename,omitempty"`
}

// Reload start statuses reported by POST /api/documents/reload.
const (
	ReloadStarted        = "started"
	ReloadAlreadyRunning = "already_running"
	ReloadInProgress     = "in_progress"
)

// ReloadStartResponse is returned by POST /api/documents/reload.
type ReloadStartResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// AlreadyRunning reports whether the backend said a reload was already active.
func (r *ReloadStartResponse) AlreadyRunning() bool {
	return r != nil && (r.Status == ReloadAlreadyRunning || r.Status == ReloadInProgress)
}
