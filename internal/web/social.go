package web

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
)

type respondFriendRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

type friendsResponse struct {
	Friends []uuid.UUID `json:"friends"`
}

type groupRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type memberRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

type shareRequest struct {
	FlashcardID uuid.UUID `json:"flashcard_id" validate:"required"`
}

// handleListFriends returns the viewer's accepted peers.
func (s *Server) handleListFriends() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		peers, err := s.friends.AcceptedPeers(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ids := peers.Slice()
		if ids == nil {
			ids = []uuid.UUID{}
		}
		writeJSON(w, http.StatusOK, friendsResponse{Friends: ids})
	}
}

// handlePendingFriends returns requests waiting on the viewer's answer.
func (s *Server) handlePendingFriends() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		pending, err := s.friends.Pending(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if pending == nil {
			pending = []domain.Friendship{}
		}
		writeJSON(w, http.StatusOK, pending)
	}
}

func (s *Server) handleRequestFriend() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		other, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		f, err := s.friends.Request(r.Context(), userID, other)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, f)
	}
}

// handleRespondFriend accepts or rejects the request {id} sent to the viewer.
func (s *Server) handleRespondFriend() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		requester, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req respondFriendRequest
		if err := s.decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		f, err := s.friends.Respond(r.Context(), userID, requester, *req.Accept)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

func (s *Server) handleRemoveFriend() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		other, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.friends.Remove(r.Context(), userID, other); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleCreateGroup creates a study group administered by the viewer.
func (s *Server) handleCreateGroup() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		var req groupRequest
		if err := s.decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		g := &domain.StudyGroup{Name: req.Name, AdminID: userID}
		if err := s.db.CreateGroup(r.Context(), g); err != nil {
			writeError(w, r, unavailable(err))
			return
		}
		writeJSON(w, http.StatusCreated, g)
	}
}

// handleAddGroupMember lets an existing member add someone to the group.
func (s *Server) handleAddGroupMember() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		groupID, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req memberRequest
		if err := s.decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		member, err := s.db.IsGroupMember(r.Context(), groupID, userID)
		if err != nil {
			writeError(w, r, unavailable(err))
			return
		}
		if !member {
			writeError(w, r, domain.ErrNotFound)
			return
		}
		if err := s.db.AddGroupMember(r.Context(), groupID, req.UserID); err != nil {
			writeError(w, r, unavailable(err))
			return
		}
		writeJSON(w, http.StatusCreated, domain.GroupMembership{GroupID: groupID, UserID: req.UserID})
	}
}

// handleShareFlashcard shares a card the viewer can see into one of their
// groups.
func (s *Server) handleShareFlashcard() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		groupID, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req shareRequest
		if err := s.decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		card, err := s.db.GetFlashcard(r.Context(), req.FlashcardID)
		if err != nil {
			writeError(w, r, unavailable(err))
			return
		}
		ok, err := s.canSee(r.Context(), userID, card)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !ok {
			writeError(w, r, domain.ErrNotFound)
			return
		}
		if err := s.db.ShareFlashcard(r.Context(), userID, groupID, card.ID); err != nil {
			writeError(w, r, unavailable(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
