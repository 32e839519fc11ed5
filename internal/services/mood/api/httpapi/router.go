// Package httpapi exposes the mood service as a thin JSON HTTP boundary.
// Rendering stays with the external presentation layer; handlers only
// validate, resolve identity, and call into the aggregator and archiver.
package httpapi

import (
	"time"

	"github.com/gorilla/mux"

	"github.com/moodtide/moodtide.app/internal/services/mood/aggregator"
	"github.com/moodtide/moodtide.app/internal/services/mood/archive"
)

// Server holds the handlers' collaborators.
type Server struct {
	agg      *aggregator.Aggregator
	archiver *archive.Archiver
	clock    func() time.Time
}

// NewServer creates the HTTP handler set.
func NewServer(agg *aggregator.Aggregator, archiver *archive.Archiver) *Server {
	return &Server{agg: agg, archiver: archiver, clock: time.Now}
}

// WithClock returns a server using clock, for tests.
func (s *Server) WithClock(clock func() time.Time) *Server {
	copied := *s
	copied.clock = clock
	return &copied
}

// NewRouter builds the service route table.
func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.health).Methods("GET")
	r.HandleFunc("/v1/contributions", s.submitContribution).Methods("POST")
	r.HandleFunc("/v1/collective", s.getCollective).Methods("GET")
	r.HandleFunc("/v1/history", s.getHistory).Methods("GET")
	r.HandleFunc("/v1/me/today", s.getMyDay).Methods("GET")
	r.HandleFunc("/v1/me/streak", s.getMyStreak).Methods("GET")

	return r
}
