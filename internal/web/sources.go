package web

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
	"github.com/conorfennell/knolshare/internal/gitsource"
	decksync "github.com/conorfennell/knolshare/internal/sync"
)

type sourceRequest struct {
	Path          string     `json:"path" validate:"required"`
	Visibility    string     `json:"visibility" validate:"omitempty,oneof=private friends public"`
	ContributedBy *uuid.UUID `json:"contributed_by"`
}

type syncResponse struct {
	Results []decksync.Result `json:"results"`
}

// handleGetSources lists the viewer's deck sources.
func (s *Server) handleGetSources() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		sources, err := s.db.SourcesOwnedBy(r.Context(), userID)
		if err != nil {
			writeError(w, r, unavailable(err))
			return
		}
		if sources == nil {
			sources = []domain.Source{}
		}
		writeJSON(w, http.StatusOK, sources)
	}
}

// handlePostSource registers a deck source owned by the viewer. Remote
// repository URLs become git sources; anything else must be a directory under
// the configured local root.
func (s *Server) handlePostSource() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		var req sourceRequest
		if err := s.decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		path, remote := req.Path, gitsource.IsRemoteURL(req.Path)
		if !remote {
			var err error
			if path, err = decksync.ResolveLocalPath(s.localRoot, req.Path); err != nil {
				writeError(w, r, err)
				return
			}
		}
		src, err := decksync.NewSource(path, userID, req.Visibility)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !remote {
			src.Type = domain.SourceLocal
		}
		src.ContributedBy = req.ContributedBy

		created, err := s.db.InsertSource(r.Context(), src)
		if err != nil {
			writeError(w, r, unavailable(err))
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func (s *Server) handleDeleteSource() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.db.DeleteSource(r.Context(), userID, id); err != nil {
			writeError(w, r, unavailable(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePostSync imports the viewer's sources in the foreground.
func (s *Server) handlePostSync() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		results, err := s.syncer.RunOwned(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if results == nil {
			results = []decksync.Result{}
		}
		writeJSON(w, http.StatusOK, syncResponse{Results: results})
	}
}
