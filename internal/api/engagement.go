package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/studydash/studydash/internal/domain"
)

// ─── Engagement API (/api/engagement/*) ─────────────────────────────────────

type completionRequest struct {
	ItemType       domain.ItemType `json:"item_type"`
	ItemID         string          `json:"item_id"`
	TimezoneOffset int             `json:"timezone_offset"`
}

type claimRequest struct {
	Date           string `json:"date"`
	TimezoneOffset int    `json:"timezone_offset"`
}

type vacationRequest struct {
	Enabled bool `json:"enabled"`
}

type institutionRequest struct {
	InstitutionID string `json:"institution_id"`
}

// --- POST /users/{userID}/completions ---

func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.RecordCompletion(r.Context(), chi.URLParam(r, "userID"), req.ItemType, req.ItemID, req.TimezoneOffset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- GET /users/{userID}/challenges ---

func (s *Server) handleChallenges(w http.ResponseWriter, r *http.Request) {
	tz, ok := queryInt(w, r, "tz", 0)
	if !ok {
		return
	}
	day, err := s.engine.ResolveDay(r.URL.Query().Get("date"), tz)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	progress, err := s.engine.GetChallenges(r.Context(), chi.URLParam(r, "userID"), day.String(), tz)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":       day.String(),
		"challenges": progress,
	})
}

// --- POST /users/{userID}/challenges/claim ---

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.ClaimCompleted(r.Context(), chi.URLParam(r, "userID"), req.Date, req.TimezoneOffset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- GET /users/{userID}/status ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Status(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// --- GET /users/{userID}/xp-history ---

func (s *Server) handleXPHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 0)
	if !ok {
		return
	}
	entries, err := s.engine.XPHistory(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.XPEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// --- PUT /users/{userID}/vacation ---

func (s *Server) handleVacation(w http.ResponseWriter, r *http.Request) {
	var req vacationRequest
	if !decode(w, r, &req) {
		return
	}
	streak, err := s.engine.SetVacationMode(r.Context(), chi.URLParam(r, "userID"), req.Enabled)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, streak)
}

// --- PUT /users/{userID}/institution ---

func (s *Server) handleInstitution(w http.ResponseWriter, r *http.Request) {
	var req institutionRequest
	if !decode(w, r, &req) {
		return
	}
	userID := chi.URLParam(r, "userID")
	if err := s.engine.SetInstitution(r.Context(), userID, req.InstitutionID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":        userID,
		"institution_id": req.InstitutionID,
	})
}

// --- GET /leaderboard ---

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 0)
	if !ok {
		return
	}
	q := r.URL.Query()
	lb, err := s.engine.Leaderboard(r.Context(), q.Get("institution"), q.Get("month"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if lb.Entries == nil {
		lb.Entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, lb)
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("decode body: %v", err))
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("%s must be an integer", name))
		return 0, false
	}
	return n, true
}
