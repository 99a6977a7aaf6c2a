package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/studydash/studydash/internal/app/engagement"
	"github.com/studydash/studydash/internal/domain"
	"github.com/studydash/studydash/internal/health"
	"github.com/studydash/studydash/internal/infra/store"
)

// monday is 2025-03-03 12:00 UTC.
var monday = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts ...Option) (*Server, *store.DB) {
	t.Helper()
	db, err := store.OpenSQLite(context.Background(), t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("Open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	eng := engagement.New(db,
		engagement.WithClock(func() time.Time { return monday }),
		engagement.WithAchievements(nil),
	)
	return NewServer(eng, opts...), db
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ─── Health Check ───────────────────────────────────────────────────────────

func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAPI_HealthWithChecker(t *testing.T) {
	db, err := store.OpenSQLite(context.Background(), t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open db: %v", err)
	}
	checker := health.NewChecker(db, nil, nil)
	checker.RunOnce(context.Background())
	srv := NewServer(engagement.New(db), WithHealth(checker))

	w := do(t, srv, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("healthy status = %d", w.Code)
	}

	db.Close()
	checker.RunOnce(context.Background())
	w = do(t, srv, "GET", "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d, want 503", w.Code)
	}
}

// ─── Completions ────────────────────────────────────────────────────────────

func TestAPI_Completion(t *testing.T) {
	srv, _ := newTestServer(t)
	body := `{"item_type":"task","item_id":"t1","timezone_offset":0}`

	w := do(t, srv, "POST", "/api/engagement/users/u1/completions", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	res := decodeBody[domain.CompletionResult](t, w)
	if res.XPEarned != 10 || res.NewStreak != 1 || res.AlreadyCredited {
		t.Errorf("result = %+v", res)
	}

	w = do(t, srv, "POST", "/api/engagement/users/u1/completions", body)
	res = decodeBody[domain.CompletionResult](t, w)
	if !res.AlreadyCredited || res.XPEarned != 0 {
		t.Errorf("duplicate result = %+v", res)
	}
}

func TestAPI_Completion_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"item_type":`},
		{"unknown item type", `{"item_type":"quiz","item_id":"q1"}`},
		{"timezone out of range", `{"item_type":"task","item_id":"t1","timezone_offset":9999}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, "POST", "/api/engagement/users/u1/completions", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			eb := decodeBody[errorBody](t, w)
			if eb.Error.Type != "invalid_request" || eb.Error.Message == "" {
				t.Errorf("error body = %+v", eb)
			}
		})
	}
}

// ─── Challenges ─────────────────────────────────────────────────────────────

func TestAPI_Challenges(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, "GET", "/api/engagement/users/u1/challenges?date=2025-03-03&tz=0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody[struct {
		Challenges []domain.ChallengeProgress `json:"challenges"`
	}](t, w)
	if len(body.Challenges) != engagement.ChallengesPerDay {
		t.Errorf("challenges = %d, want %d", len(body.Challenges), engagement.ChallengesPerDay)
	}

	for _, q := range []string{"?date=03/03/2025", "?tz=abc"} {
		w = do(t, srv, "GET", "/api/engagement/users/u1/challenges"+q, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestAPI_Challenges_EchoesResolvedDate(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		query string
		want  string
	}{
		{"", "2025-03-03"},
		{"?tz=-840", "2025-03-04"},
		{"?date=2025-02-28&tz=-840", "2025-02-28"},
	}
	for _, tt := range tests {
		w := do(t, srv, "GET", "/api/engagement/users/u1/challenges"+tt.query, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%q: status = %d: %s", tt.query, w.Code, w.Body.String())
		}
		body := decodeBody[struct {
			Date string `json:"date"`
		}](t, w)
		if body.Date != tt.want {
			t.Errorf("%q: date = %q, want %q", tt.query, body.Date, tt.want)
		}
	}
}

func TestAPI_Claim_NothingToClaim(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, "POST", "/api/engagement/users/u1/challenges/claim", `{"date":"2025-03-03","timezone_offset":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"claimed_challenges":[]`) {
		t.Errorf("claimed_challenges should be an empty array: %s", w.Body.String())
	}
	res := decodeBody[domain.ClaimResult](t, w)
	if res.XPAwarded != 0 || res.SweepBonus {
		t.Errorf("result = %+v", res)
	}
}

// ─── Status, History, Vacation ──────────────────────────────────────────────

func TestAPI_StatusAndHistory(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, "POST", "/api/engagement/users/u1/completions", `{"item_type":"flashcard","item_id":"f1"}`)

	w := do(t, srv, "GET", "/api/engagement/users/u1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	st := decodeBody[domain.UserStatus](t, w)
	if st.Streak.TotalXP != 10 || st.XP.Level != 1 || len(st.RecentActivity) != engagement.RecentActivityDays {
		t.Errorf("status = %+v", st)
	}

	w = do(t, srv, "GET", "/api/engagement/users/u1/xp-history?limit=5", "")
	hist := decodeBody[struct {
		Entries []domain.XPEntry `json:"entries"`
	}](t, w)
	if len(hist.Entries) != 1 || hist.Entries[0].Source != domain.XPTaskCompleted {
		t.Errorf("history = %+v", hist.Entries)
	}

	w = do(t, srv, "GET", "/api/engagement/users/u1/xp-history?limit=x", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", w.Code)
	}
}

func TestAPI_Vacation(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, "PUT", "/api/engagement/users/u1/vacation", `{"enabled":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	s := decodeBody[domain.UserStreak](t, w)
	if !s.VacationMode || s.VacationStartedAt == nil {
		t.Errorf("streak = %+v", s)
	}
}

// ─── Leaderboard ────────────────────────────────────────────────────────────

func TestAPI_InstitutionAndLeaderboard(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, u := range []string{"alice", "bob"} {
		w := do(t, srv, "PUT", "/api/engagement/users/"+u+"/institution", `{"institution_id":"uni"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("set institution: %d", w.Code)
		}
	}
	do(t, srv, "POST", "/api/engagement/users/bob/completions", `{"item_type":"task","item_id":"t1"}`)

	w := do(t, srv, "GET", "/api/engagement/leaderboard?institution=uni&month=2025-03", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	lb := decodeBody[domain.Leaderboard](t, w)
	if len(lb.Entries) != 1 || lb.Entries[0].UserID != "bob" || lb.Entries[0].Rank != 1 || lb.Entries[0].XP != 10 {
		t.Errorf("leaderboard = %+v", lb)
	}

	w = do(t, srv, "GET", "/api/engagement/leaderboard", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing institution status = %d, want 400", w.Code)
	}
}

// ─── Metrics & CORS ─────────────────────────────────────────────────────────

func TestAPI_Metrics(t *testing.T) {
	srv, _ := newTestServer(t)
	if w := do(t, srv, "GET", "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("metrics disabled status = %d, want 404", w.Code)
	}

	srv.EnableMetrics()
	w := do(t, srv, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Errorf("metrics status = %d", w.Code)
	}
}

func TestAPI_CORS(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/engagement/users/u1/status", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("CORS: Access-Control-Allow-Origin should be set on preflight")
	}
}
