package web

import (
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/knolshare/internal/domain"
	"github.com/conorfennell/knolshare/internal/dueset"
	"github.com/conorfennell/knolshare/internal/friends"
	"github.com/conorfennell/knolshare/internal/schedule"
	"github.com/conorfennell/knolshare/internal/session"
	"github.com/conorfennell/knolshare/internal/storage"
	decksync "github.com/conorfennell/knolshare/internal/sync"
)

// UserHeader carries the authenticated viewer's ID, set by the auth proxy in
// front of the service.
const UserHeader = "X-User-ID"

// Server holds the dependencies for the HTTP server.
type Server struct {
	db        *storage.DB
	router    *http.ServeMux
	clock     domain.Clock
	scheduler *schedule.Scheduler
	friends   *friends.Accessor
	dueSets   *dueset.Builder
	sessions  *session.Registry
	syncer    *decksync.Syncer
	localRoot string
	validate  *validator.Validate
	seed      func() uint64
}

// Option customizes a Server.
type Option func(*Server)

// WithSeed fixes how session shuffle seeds are drawn.
func WithSeed(seed func() uint64) Option {
	return func(s *Server) { s.seed = seed }
}

// WithSyncer replaces the deck importer behind POST /sync.
func WithSyncer(syncer *decksync.Syncer) Option {
	return func(s *Server) { s.syncer = syncer }
}

// WithLocalRoot allows local deck directories under dir to be registered.
// Without it only remote git URLs are accepted.
func WithLocalRoot(dir string) Option {
	return func(s *Server) { s.localRoot = dir }
}

// NewServer wires the review, social and import services over db. Calendar
// days are decided in loc.
func NewServer(db *storage.DB, clock domain.Clock, loc *time.Location, reposDir string, opts ...Option) *Server {
	peers := friends.NewAccessor(db, clock)
	s := &Server{
		db:        db,
		router:    http.NewServeMux(),
		clock:     clock,
		scheduler: schedule.New(db, clock, schedule.WithLocation(loc)),
		friends:   peers,
		dueSets:   dueset.NewBuilder(db, db, peers, db, loc),
		sessions:  session.NewRegistry(),
		syncer:    decksync.New(db, reposDir, clock),
		validate:  newValidator(),
		seed:      rand.Uint64,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth())

	// Review
	s.router.HandleFunc("GET /due", s.authed(s.handleGetDue()))
	s.router.HandleFunc("GET /streak", s.authed(s.handleGetStreak()))
	s.router.HandleFunc("GET /stats", s.authed(s.handleGetStats()))
	s.router.HandleFunc("GET /history", s.authed(s.handleGetHistory()))

	// Study session
	s.router.HandleFunc("POST /session", s.authed(s.handleStartSession()))
	s.router.HandleFunc("GET /session", s.authed(s.handleGetSession()))
	s.router.HandleFunc("POST /session/reveal", s.authed(s.handleRevealSession()))
	s.router.HandleFunc("POST /session/rate", s.authed(s.handleRateSession()))
	s.router.HandleFunc("POST /session/restart", s.authed(s.handleRestartSession()))
	s.router.HandleFunc("DELETE /session", s.authed(s.handleExitSession()))

	// Flashcards
	s.router.HandleFunc("GET /flashcards", s.authed(s.handleListFlashcards()))
	s.router.HandleFunc("POST /flashcards", s.authed(s.handleCreateFlashcard()))
	s.router.HandleFunc("GET /flashcards/{id}", s.authed(s.handleGetFlashcard()))
	s.router.HandleFunc("PUT /flashcards/{id}", s.authed(s.handleUpdateFlashcard()))
	s.router.HandleFunc("PUT /flashcards/{id}/visibility", s.authed(s.handleSetVisibility()))
	s.router.HandleFunc("DELETE /flashcards/{id}", s.authed(s.handleDeleteFlashcard()))

	// Friends
	s.router.HandleFunc("GET /friends", s.authed(s.handleListFriends()))
	s.router.HandleFunc("GET /friends/requests", s.authed(s.handlePendingFriends()))
	s.router.HandleFunc("POST /friends/{id}", s.authed(s.handleRequestFriend()))
	s.router.HandleFunc("PUT /friends/{id}", s.authed(s.handleRespondFriend()))
	s.router.HandleFunc("DELETE /friends/{id}", s.authed(s.handleRemoveFriend()))

	// Study groups
	s.router.HandleFunc("POST /groups", s.authed(s.handleCreateGroup()))
	s.router.HandleFunc("POST /groups/{id}/members", s.authed(s.handleAddGroupMember()))
	s.router.HandleFunc("POST /groups/{id}/cards", s.authed(s.handleShareFlashcard()))

	// Deck sources
	s.router.HandleFunc("GET /sources", s.authed(s.handleGetSources()))
	s.router.HandleFunc("POST /sources", s.authed(s.handlePostSource()))
	s.router.HandleFunc("DELETE /sources/{id}", s.authed(s.handleDeleteSource()))
	s.router.HandleFunc("POST /sync", s.authed(s.handlePostSync()))
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.db.Version(r.Context()); err != nil {
			writeError(w, r, unavailable(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
