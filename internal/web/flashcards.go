package web

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
	"github.com/conorfennell/knolshare/internal/dueset"
	"github.com/conorfennell/knolshare/internal/visibility"
)

type sideRequest struct {
	Text     string `json:"text" validate:"required,max=4000"`
	ImageURL string `json:"image_url" validate:"omitempty,url"`
}

type flashcardRequest struct {
	Subject       string      `json:"subject" validate:"max=100"`
	CustomSubject string      `json:"custom_subject" validate:"max=100"`
	Front         sideRequest `json:"front"`
	Back          sideRequest `json:"back"`
	Visibility    string      `json:"visibility" validate:"omitempty,oneof=private friends public"`
}

type visibilityRequest struct {
	Visibility string `json:"visibility" validate:"required"`
}

// toFlashcard resolves the catalog subject and visibility of a request.
// Visibility defaults to private.
func (s *Server) toFlashcard(ctx context.Context, owner uuid.UUID, req flashcardRequest) (domain.Flashcard, error) {
	card := domain.Flashcard{
		OwnerID:       owner,
		CustomSubject: req.CustomSubject,
		Front:         domain.Side{Text: req.Front.Text, ImageURL: req.Front.ImageURL},
		Back:          domain.Side{Text: req.Back.Text, ImageURL: req.Back.ImageURL},
		Visibility:    domain.VisibilityPrivate,
	}
	if req.Visibility != "" {
		v, err := domain.ParseVisibility(req.Visibility)
		if err != nil {
			return domain.Flashcard{}, err
		}
		card.Visibility = v
	}
	if req.Subject != "" {
		id, err := s.db.EnsureSubject(ctx, req.Subject)
		if err != nil {
			return domain.Flashcard{}, unavailable(err)
		}
		card.SubjectID = &id
		card.SubjectName = req.Subject
	}
	return card, nil
}

func (s *Server) handleListFlashcards() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		cards, err := s.db.FlashcardsOwnedBy(r.Context(), userID)
		if err != nil {
			writeError(w, r, unavailable(err))
			return
		}
		if cards == nil {
			cards = []domain.Flashcard{}
		}
		writeJSON(w, http.StatusOK, cards)
	}
}

func (s *Server) handleCreateFlashcard() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		var req flashcardRequest
		if err := s.decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		card, err := s.toFlashcard(r.Context(), userID, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		card.CreatedAt = s.clock.Now().UTC()
		if err := s.db.InsertFlashcard(r.Context(), &card); err != nil {
			writeError(w, r, unavailable(err))
			return
		}
		writeJSON(w, http.StatusCreated, card)
	}
}

// handleGetFlashcard returns a card the viewer may see. Cards outside the
// viewer's reach answer 404 so their existence is not revealed.
func (s *Server) handleGetFlashcard() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		card, err := s.db.GetFlashcard(r.Context(), id)
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
		writeJSON(w, http.StatusOK, dueset.Sanitize(card))
	}
}

func (s *Server) canSee(ctx context.Context, viewer uuid.UUID, card domain.Flashcard) (bool, error) {
	if card.OwnerID == viewer || card.Visibility == domain.VisibilityPublic {
		return true, nil
	}
	peers, err := s.friends.AcceptedPeers(ctx, viewer)
	if err != nil {
		return false, err
	}
	shared, err := s.db.GroupSharedFlashcardIDs(ctx, viewer)
	if err != nil {
		return false, unavailable(err)
	}
	return visibility.IsAccessible(viewer, card, peers, domain.NewIDSet(shared...)), nil
}

func (s *Server) handleUpdateFlashcard() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req flashcardRequest
		if err := s.decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		card, err := s.toFlashcard(r.Context(), userID, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		card.ID = id
		if err := s.db.UpdateFlashcard(r.Context(), userID, card); err != nil {
			writeError(w, r, unavailable(err))
			return
		}
		updated, err := s.db.GetFlashcard(r.Context(), id)
		if err != nil {
			writeError(w, r, unavailable(err))
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// handleSetVisibility changes a card's tier. Unknown tiers are rejected with
// 400 rather than stored.
func (s *Server) handleSetVisibility() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req visibilityRequest
		if err := s.decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		v, err := domain.ParseVisibility(req.Visibility)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.db.SetFlashcardVisibility(r.Context(), userID, id, v); err != nil {
			writeError(w, r, unavailable(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleDeleteFlashcard() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.db.DeleteFlashcard(r.Context(), userID, id); err != nil {
			writeError(w, r, unavailable(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
