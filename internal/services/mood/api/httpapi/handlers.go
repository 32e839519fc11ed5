package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/moodtide/moodtide.app/internal/errors"
	"github.com/moodtide/moodtide.app/internal/mood"
	"github.com/moodtide/moodtide.app/internal/services/mood/storage"
)

// sessionCookie carries the anonymous session identity when no
// authenticated user header is present.
const sessionCookie = "moodtide_session"

// userIDHeader is set by the upstream identity layer for signed-in users.
const userIDHeader = "X-User-ID"

const defaultHistoryLimit = 168 // one week of hourly snapshots

type contributionRequest struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Lightness  float64 `json:"lightness"`
	Adjective  string  `json:"adjective"`
}

type collectiveResponse struct {
	Hue                  float64       `json:"hue"`
	Saturation           float64       `json:"saturation"`
	Lightness            float64       `json:"lightness"`
	MoodAdjective        string        `json:"moodAdjective"`
	TotalContributions   int64         `json:"totalContributions"`
	RecentContributions  []mood.Sample `json:"recentContributions"`
	CelebratedMilestones []int64       `json:"celebratedMilestones"`
	LastUpdated          time.Time     `json:"lastUpdated"`
}

type dailySummaryResponse struct {
	Date              string  `json:"date"`
	AverageHue        float64 `json:"averageHue"`
	AverageSaturation float64 `json:"averageSaturation"`
	AverageLightness  float64 `json:"averageLightness"`
	DominantAdjective string  `json:"dominantAdjective"`
	ContributionCount int     `json:"contributionCount"`
}

type streakResponse struct {
	CurrentStreak        int    `json:"currentStreak"`
	LastContributionDate string `json:"lastContributionDate"`
}

type snapshotResponse struct {
	Timestamp         time.Time `json:"timestamp"`
	Hue               float64   `json:"hue"`
	Saturation        float64   `json:"saturation"`
	Lightness         float64   `json:"lightness"`
	MoodAdjective     string    `json:"moodAdjective"`
	ContributionCount int64     `json:"contributionCount"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) submitContribution(w http.ResponseWriter, r *http.Request) {
	var req contributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	identity := s.resolveIdentity(w, r)
	contribution := mood.Contribution{
		Hue:         req.Hue,
		Saturation:  req.Saturation,
		Lightness:   req.Lightness,
		Adjective:   req.Adjective,
		SubmittedBy: identity,
		SubmittedAt: s.clock().UTC(),
	}

	state, err := s.agg.Submit(r.Context(), contribution)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCollectiveResponse(state))
}

func (s *Server) getCollective(w http.ResponseWriter, r *http.Request) {
	state, err := s.agg.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCollectiveResponse(state))
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	// A history visit is the archiver's trigger. Fire and forget: the
	// response never waits on, or reports, the archive outcome.
	s.archiver.TriggerAsync(s.clock())

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	snaps, err := s.archiver.History(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]snapshotResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, snapshotResponse{
			Timestamp:         snap.Timestamp,
			Hue:               snap.Hue,
			Saturation:        snap.Saturation,
			Lightness:         snap.Lightness,
			MoodAdjective:     snap.MoodAdjective,
			ContributionCount: snap.ContributionCount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getMyDay(w http.ResponseWriter, r *http.Request) {
	identity := s.resolveIdentity(w, r)
	summary, err := s.agg.UserDay(r.Context(), identity)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusOK, dailySummaryResponse{Date: mood.Day(s.clock().UTC())})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dailySummaryResponse{
		Date:              summary.Date,
		AverageHue:        summary.AverageHue,
		AverageSaturation: summary.AverageSaturation,
		AverageLightness:  summary.AverageLightness,
		DominantAdjective: summary.DominantAdjective,
		ContributionCount: summary.ContributionCount,
	})
}

func (s *Server) getMyStreak(w http.ResponseWriter, r *http.Request) {
	identity := s.resolveIdentity(w, r)
	profile, err := s.agg.Streak(r.Context(), identity)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusOK, streakResponse{})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streakResponse{
		CurrentStreak:        profile.CurrentStreak,
		LastContributionDate: profile.LastContributionDate,
	})
}

// resolveIdentity returns the authenticated user id when the upstream
// identity layer provides one, otherwise the anonymous session id, minting
// and setting a session cookie on first contact.
func (s *Server) resolveIdentity(w http.ResponseWriter, r *http.Request) string {
	if uid := r.Header.Get(userIDHeader); uid != "" {
		return uid
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	session := "anon-" + uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return session
}

func toCollectiveResponse(state storage.CollectiveMoodState) collectiveResponse {
	recent := state.RecentContributions
	if recent == nil {
		recent = []mood.Sample{}
	}
	milestones := state.CelebratedMilestones
	if milestones == nil {
		milestones = []int64{}
	}
	return collectiveResponse{
		Hue:                  state.Hue,
		Saturation:           state.Saturation,
		Lightness:            state.Lightness,
		MoodAdjective:        state.MoodAdjective,
		TotalContributions:   state.TotalContributions,
		RecentContributions:  recent,
		CelebratedMilestones: milestones,
		LastUpdated:          state.LastUpdated,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	writeJSONError(w, code.HTTPStatus(), string(code), err.Error())
}

func writeJSONError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]errorResponse{
		"error": {Code: code, Message: message},
	})
}
