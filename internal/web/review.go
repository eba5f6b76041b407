package web

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
	"github.com/conorfennell/knolshare/internal/session"
)

type streakResponse struct {
	Streak int `json:"streak"`
}

type startSessionRequest struct {
	Subject string `json:"subject" validate:"required"`
}

type rateRequest struct {
	Quality string `json:"quality" validate:"required"`
}

type rateResponse struct {
	Event   domain.ReviewEvent `json:"event"`
	Session session.View       `json:"session"`
}

// handleGetDue returns the viewer's due set grouped by subject.
func (s *Server) handleGetDue() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		set, err := s.dueSets.DueCards(r.Context(), userID, s.clock.Now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, set)
	}
}

func (s *Server) handleGetStreak() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		n, err := s.scheduler.ComputeStreak(r.Context(), userID, s.clock.Now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, streakResponse{Streak: n})
	}
}

func (s *Server) handleGetStats() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		st, err := s.scheduler.Stats(r.Context(), userID, s.clock.Now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func (s *Server) handleGetHistory() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		events, err := s.scheduler.History(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if events == nil {
			events = []domain.ReviewEvent{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}

// handleStartSession builds a fresh due set and starts a session on one of
// its subject groups, replacing any session the viewer already had.
func (s *Server) handleStartSession() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		var req startSessionRequest
		if err := s.decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		set, err := s.dueSets.DueCards(r.Context(), userID, s.clock.Now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		group, ok := set.Group(req.Subject)
		if !ok {
			writeError(w, r, domain.ErrNotFound)
			return
		}

		runner, err := session.New(userID, group, s.scheduler, s.seed())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := runner.Start(); err != nil {
			writeError(w, r, err)
			return
		}
		s.sessions.Put(runner)
		writeJSON(w, http.StatusCreated, runner.Snapshot())
	}
}

// withSession looks up the viewer's running session.
func (s *Server) withSession(next func(w http.ResponseWriter, r *http.Request, runner *session.Runner)) userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		runner, ok := s.sessions.Get(userID)
		if !ok {
			writeError(w, r, domain.ErrNotFound)
			return
		}
		next(w, r, runner)
	}
}

func (s *Server) handleGetSession() userHandler {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, runner *session.Runner) {
		writeJSON(w, http.StatusOK, runner.Snapshot())
	})
}

func (s *Server) handleRevealSession() userHandler {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, runner *session.Runner) {
		if err := runner.Reveal(); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, runner.Snapshot())
	})
}

// handleRateSession records the rating of the revealed card and advances.
func (s *Server) handleRateSession() userHandler {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, runner *session.Runner) {
		var req rateRequest
		if err := s.decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		q, err := domain.ParseQuality(req.Quality)
		if err != nil {
			writeError(w, r, err)
			return
		}
		event, err := runner.Rate(r.Context(), q)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rateResponse{Event: event, Session: runner.Snapshot()})
	})
}

func (s *Server) handleRestartSession() userHandler {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, runner *session.Runner) {
		if err := runner.Restart(); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, runner.Snapshot())
	})
}

// handleExitSession discards the viewer's session. Nothing is written.
func (s *Server) handleExitSession() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		if !s.sessions.Exit(userID) {
			writeError(w, r, domain.ErrNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
