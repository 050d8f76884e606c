package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"cbt-exam-service/internal/app"
	"cbt-exam-service/internal/domain"
)

// DashboardHandler serves the read-side JSON endpoints: the per-user test
// overview, stored results, retakes, and the certificate payload.
type DashboardHandler struct {
	service *app.ExamService
}

func NewDashboardHandler(service *app.ExamService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

type overviewResponse struct {
	Tests []domain.TestStatus `json:"tests"`
	Stats domain.UserStats    `json:"stats"`
}

// ServeOverview handles GET /api/tests.
func (h *DashboardHandler) ServeOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tests, stats, err := h.service.Overview(r.Context(), identityFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, overviewResponse{Tests: tests, Stats: stats})
}

// ServeResult handles GET /api/result?testId=...
func (h *DashboardHandler) ServeResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	record, err := h.service.Result(r.Context(), identityFromQuery(r), r.URL.Query().Get("testId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, record)
}

// ServeRetake handles POST /api/retake?testId=... The stored attempt is
// cleared and a fresh session is waiting for the next websocket connection.
func (h *DashboardHandler) ServeRetake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	session, err := h.service.Retake(r.Context(), identityFromQuery(r), r.URL.Query().Get("testId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, session.Snapshot())
}

// ServeCertificate handles GET /api/certificate?testId=... It returns the
// payload for the external certificate generator, not a rendered document.
func (h *DashboardHandler) ServeCertificate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := h.service.Certificate(r.Context(), identityFromQuery(r), r.URL.Query().Get("testId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, req)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNoIdentity):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, domain.ErrTestNotFound), errors.Is(err, domain.ErrResultNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrNotPassed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
