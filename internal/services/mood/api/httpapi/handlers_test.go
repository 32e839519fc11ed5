package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/moodtide/moodtide.app/internal/services/mood/aggregator"
	"github.com/moodtide/moodtide.app/internal/services/mood/archive"
	"github.com/moodtide/moodtide.app/internal/services/mood/storage/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	agg := aggregator.New(store, store, nil).WithClock(clock)
	archiver := archive.New(store, store, nil)
	return NewServer(agg, archiver).WithClock(clock), store
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	router := NewRouter(server)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSubmitContribution(t *testing.T) {
	server, store := newTestServer(t)
	router := NewRouter(server)

	body := `{"hue": 120, "saturation": 50, "lightness": 50, "adjective": "hopeful"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/contributions", strings.NewReader(body))
	req.Header.Set(userIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp collectiveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalContributions != 1 {
		t.Fatalf("expected 1 contribution, got %d", resp.TotalContributions)
	}
	if resp.Hue != 120 {
		t.Fatalf("expected hue 120, got %v", resp.Hue)
	}

	// The per-user records commit in the same call.
	day, err := store.GetUserDay(req.Context(), "user-1", "2026-03-01")
	if err != nil {
		t.Fatalf("get user day: %v", err)
	}
	if day.ContributionCount != 1 {
		t.Fatalf("expected daily count 1, got %d", day.ContributionCount)
	}
	profile, err := store.GetStreakProfile(req.Context(), "user-1")
	if err != nil {
		t.Fatalf("get streak profile: %v", err)
	}
	if profile.CurrentStreak != 1 {
		t.Fatalf("expected streak 1, got %d", profile.CurrentStreak)
	}
}

func TestSubmitContributionInvalidHue(t *testing.T) {
	server, _ := newTestServer(t)
	router := NewRouter(server)

	body := `{"hue": 400, "saturation": 50, "lightness": 50}`
	req := httptest.NewRequest(http.MethodPost, "/v1/contributions", strings.NewReader(body))
	req.Header.Set(userIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "CONTRIBUTION_INVALID_HUE") {
		t.Fatalf("expected invalid hue code, got %s", rec.Body.String())
	}
}

func TestSubmitContributionMintsAnonymousSession(t *testing.T) {
	server, _ := newTestServer(t)
	router := NewRouter(server)

	body := `{"hue": 120, "saturation": 50, "lightness": 50}`
	req := httptest.NewRequest(http.MethodPost, "/v1/contributions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	var found bool
	for _, cookie := range cookies {
		if cookie.Name == sessionCookie && strings.HasPrefix(cookie.Value, "anon-") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected an anonymous session cookie")
	}
}

func TestGetCollectiveSeedsDefault(t *testing.T) {
	server, _ := newTestServer(t)
	router := NewRouter(server)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/collective", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp collectiveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalContributions != 0 {
		t.Fatalf("expected 0 contributions, got %d", resp.TotalContributions)
	}
	if resp.MoodAdjective == "" {
		t.Fatal("expected seeded adjective")
	}
}

func TestGetHistoryReturnsSnapshots(t *testing.T) {
	server, store := newTestServer(t)
	router := NewRouter(server)

	// Contribute so the archiver trigger has state to copy eventually;
	// the assertion reads the synchronously archived seed below.
	body := `{"hue": 120, "saturation": 50, "lightness": 50}`
	req := httptest.NewRequest(http.MethodPost, "/v1/contributions", strings.NewReader(body))
	req.Header.Set(userIDHeader, "user-1")
	router.ServeHTTP(httptest.NewRecorder(), req)

	archiver := archive.New(store, store, nil)
	if _, err := archiver.ArchiveIfDue(req.Context(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("archive: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history?limit=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snaps []snapshotResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &snaps); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(snaps) < 1 {
		t.Fatal("expected at least one snapshot")
	}
	if snaps[0].ContributionCount != 1 {
		t.Fatalf("expected contribution count 1, got %d", snaps[0].ContributionCount)
	}
}

func TestGetHistoryRejectsBadLimit(t *testing.T) {
	server, _ := newTestServer(t)
	router := NewRouter(server)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history?limit=nope", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetMyDayAndStreak(t *testing.T) {
	server, _ := newTestServer(t)
	router := NewRouter(server)

	body := `{"hue": 90, "saturation": 60, "lightness": 50}`
	req := httptest.NewRequest(http.MethodPost, "/v1/contributions", strings.NewReader(body))
	req.Header.Set(userIDHeader, "user-7")
	router.ServeHTTP(httptest.NewRecorder(), req)

	dayReq := httptest.NewRequest(http.MethodGet, "/v1/me/today", nil)
	dayReq.Header.Set(userIDHeader, "user-7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, dayReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var day dailySummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &day); err != nil {
		t.Fatalf("decode day: %v", err)
	}
	if day.ContributionCount != 1 {
		t.Fatalf("expected daily count 1, got %d", day.ContributionCount)
	}
	if day.AverageHue != 90 {
		t.Fatalf("expected average hue 90, got %v", day.AverageHue)
	}

	streakReq := httptest.NewRequest(http.MethodGet, "/v1/me/streak", nil)
	streakReq.Header.Set(userIDHeader, "user-7")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, streakReq)
	var streak streakResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &streak); err != nil {
		t.Fatalf("decode streak: %v", err)
	}
	if streak.CurrentStreak != 1 {
		t.Fatalf("expected streak 1, got %d", streak.CurrentStreak)
	}
}

func TestGetMyDayEmptyIsZeroSummary(t *testing.T) {
	server, _ := newTestServer(t)
	router := NewRouter(server)

	req := httptest.NewRequest(http.MethodGet, "/v1/me/today", nil)
	req.Header.Set(userIDHeader, "user-new")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var day dailySummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &day); err != nil {
		t.Fatalf("decode day: %v", err)
	}
	if day.ContributionCount != 0 {
		t.Fatalf("expected empty summary, got count %d", day.ContributionCount)
	}
	if day.Date != "2026-03-01" {
		t.Fatalf("expected today's date, got %q", day.Date)
	}
}
