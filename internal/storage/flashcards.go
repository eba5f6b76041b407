package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
	"github.com/conorfennell/knolshare/internal/visibility"
)

const flashcardColumns = `
	f.id, f.owner_id, f.contributed_by, f.subject_id, s.name AS subject_name, f.custom_subject,
	f.front_text, f.front_image, f.back_text, f.back_image,
	f.visibility, f.is_public, f.content_hash, f.source_id, f.created_at
	FROM flashcards f LEFT JOIN subjects s ON s.id = f.subject_id`

// visibilityTier reads the visibility column the way visibility.FromColumns
// does: case and surrounding spaces are ignored.
const visibilityTier = `LOWER(TRIM(COALESCE(f.visibility, '')))`

type flashcardRow struct {
	ID            uuid.UUID      `db:"id"`
	OwnerID       uuid.UUID      `db:"owner_id"`
	ContributedBy uuid.NullUUID  `db:"contributed_by"`
	SubjectID     uuid.NullUUID  `db:"subject_id"`
	SubjectName   sql.NullString `db:"subject_name"`
	CustomSubject sql.NullString `db:"custom_subject"`
	FrontText     string         `db:"front_text"`
	FrontImage    sql.NullString `db:"front_image"`
	BackText      string         `db:"back_text"`
	BackImage     sql.NullString `db:"back_image"`
	Visibility    sql.NullString `db:"visibility"`
	IsPublic      sql.NullBool   `db:"is_public"`
	ContentHash   sql.NullString `db:"content_hash"`
	SourceID      uuid.NullUUID  `db:"source_id"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r flashcardRow) toDomain() domain.Flashcard {
	var isPublic *bool
	if r.IsPublic.Valid {
		isPublic = &r.IsPublic.Bool
	}
	vis, err := visibility.FromColumns(r.Visibility.String, isPublic)
	if err != nil {
		slog.Warn("Unknown visibility, treating card as private", "card_id", r.ID, "value", r.Visibility.String)
	}
	return domain.Flashcard{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		ContributedBy: uuidPtr(r.ContributedBy),
		SubjectID:     uuidPtr(r.SubjectID),
		SubjectName:   r.SubjectName.String,
		CustomSubject: r.CustomSubject.String,
		Front:         domain.Side{Text: r.FrontText, ImageURL: r.FrontImage.String},
		Back:          domain.Side{Text: r.BackText, ImageURL: r.BackImage.String},
		Visibility:    vis,
		ContentHash:   r.ContentHash.String,
		SourceID:      uuidPtr(r.SourceID),
		CreatedAt:     r.CreatedAt,
	}
}

func toFlashcards(rows []flashcardRow) []domain.Flashcard {
	cards := make([]domain.Flashcard, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, r.toDomain())
	}
	return cards
}

// InsertFlashcard stores a new card. A zero ID or CreatedAt is filled in.
func (db *DB) InsertFlashcard(ctx context.Context, card *domain.Flashcard) error {
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}
	vis, isPublic := visibility.ToColumns(card.Visibility)
	_, err := db.execContext(ctx, `
		INSERT INTO flashcards (id, owner_id, contributed_by, subject_id, custom_subject,
			front_text, front_image, back_text, back_image, visibility, is_public, content_hash, source_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID,
		card.OwnerID,
		nullUUID(card.ContributedBy),
		nullUUID(card.SubjectID),
		nullString(card.CustomSubject),
		card.Front.Text,
		nullString(card.Front.ImageURL),
		card.Back.Text,
		nullString(card.Back.ImageURL),
		vis,
		isPublic,
		nullString(card.ContentHash),
		nullUUID(card.SourceID),
		card.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert flashcard %s: %w", card.ID, err)
	}
	return nil
}

// GetFlashcard retrieves a card by ID.
func (db *DB) GetFlashcard(ctx context.Context, id uuid.UUID) (domain.Flashcard, error) {
	var row flashcardRow
	err := db.getContext(ctx, &row, `SELECT `+flashcardColumns+` WHERE f.id = ?`, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Flashcard{}, err
		}
		return domain.Flashcard{}, fmt.Errorf("failed to get flashcard %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// UpdateFlashcard rewrites a card's text, subject and visibility. Only the
// owner may do this; any other caller gets domain.ErrNotFound.
func (db *DB) UpdateFlashcard(ctx context.Context, ownerID uuid.UUID, card domain.Flashcard) error {
	vis, isPublic := visibility.ToColumns(card.Visibility)
	err := db.execOne(ctx, `
		UPDATE flashcards
		SET front_text = ?, front_image = ?, back_text = ?, back_image = ?,
			subject_id = ?, custom_subject = ?, visibility = ?, is_public = ?
		WHERE id = ? AND owner_id = ?
	`,
		card.Front.Text,
		nullString(card.Front.ImageURL),
		card.Back.Text,
		nullString(card.Back.ImageURL),
		nullUUID(card.SubjectID),
		nullString(card.CustomSubject),
		vis,
		isPublic,
		card.ID,
		ownerID,
	)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to update flashcard %s: %w", card.ID, err)
	}
	return err
}

// SetFlashcardVisibility changes only the visibility tier of an owner's card.
func (db *DB) SetFlashcardVisibility(ctx context.Context, ownerID, cardID uuid.UUID, v domain.Visibility) error {
	vis, isPublic := visibility.ToColumns(v)
	err := db.execOne(ctx, `
		UPDATE flashcards SET visibility = ?, is_public = ? WHERE id = ? AND owner_id = ?
	`, vis, isPublic, cardID, ownerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to set visibility for flashcard %s: %w", cardID, err)
	}
	return err
}

// DeleteFlashcard removes an owner's card. Review events referencing it are
// left in the ledger.
func (db *DB) DeleteFlashcard(ctx context.Context, ownerID, cardID uuid.UUID) error {
	err := db.execOne(ctx, `DELETE FROM flashcards WHERE id = ? AND owner_id = ?`, cardID, ownerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to delete flashcard %s: %w", cardID, err)
	}
	return err
}

// PublicFlashcards returns every public card, including legacy rows whose
// visibility column is empty or unrecognised but carry is_public.
func (db *DB) PublicFlashcards(ctx context.Context) ([]domain.Flashcard, error) {
	var rows []flashcardRow
	err := db.selectContext(ctx, &rows, `
		SELECT `+flashcardColumns+`
		WHERE `+visibilityTier+` = ?
			OR (`+visibilityTier+` NOT IN (?, ?, ?) AND f.is_public = ?)
		ORDER BY f.created_at, f.id
	`, string(domain.VisibilityPublic),
		string(domain.VisibilityPrivate), string(domain.VisibilityFriends), string(domain.VisibilityPublic), true)
	if err != nil {
		return nil, fmt.Errorf("failed to get public flashcards: %w", err)
	}
	return toFlashcards(rows), nil
}

// FlashcardsOwnedBy returns all cards created by ownerID.
func (db *DB) FlashcardsOwnedBy(ctx context.Context, ownerID uuid.UUID) ([]domain.Flashcard, error) {
	var rows []flashcardRow
	err := db.selectContext(ctx, &rows, `
		SELECT `+flashcardColumns+` WHERE f.owner_id = ? ORDER BY f.created_at, f.id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get flashcards for owner %s: %w", ownerID, err)
	}
	return toFlashcards(rows), nil
}

// FriendsTierFlashcards returns the friends-visibility cards of the given owners.
func (db *DB) FriendsTierFlashcards(ctx context.Context, ownerIDs []uuid.UUID) ([]domain.Flashcard, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	var rows []flashcardRow
	err := db.selectIn(ctx, &rows, `
		SELECT `+flashcardColumns+`
		WHERE `+visibilityTier+` = ? AND f.owner_id IN (?)
		ORDER BY f.created_at, f.id
	`, string(domain.VisibilityFriends), ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get friends flashcards: %w", err)
	}
	return toFlashcards(rows), nil
}

// FlashcardsByIDs returns the cards with the given IDs; missing IDs are skipped.
func (db *DB) FlashcardsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Flashcard, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []flashcardRow
	err := db.selectIn(ctx, &rows, `
		SELECT `+flashcardColumns+` WHERE f.id IN (?) ORDER BY f.created_at, f.id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get flashcards by id: %w", err)
	}
	return toFlashcards(rows), nil
}

// FlashcardsBySource retrieves all cards imported from a source.
func (db *DB) FlashcardsBySource(ctx context.Context, sourceID uuid.UUID) ([]domain.Flashcard, error) {
	var rows []flashcardRow
	err := db.selectContext(ctx, &rows, `
		SELECT `+flashcardColumns+` WHERE f.source_id = ? ORDER BY f.created_at, f.id
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source %s: %w", sourceID, err)
	}
	return toFlashcards(rows), nil
}

// FindFlashcardByHash looks up an imported card by its content hash within a source.
func (db *DB) FindFlashcardByHash(ctx context.Context, sourceID uuid.UUID, hash string) (domain.Flashcard, error) {
	var row flashcardRow
	err := db.getContext(ctx, &row, `
		SELECT `+flashcardColumns+` WHERE f.source_id = ? AND f.content_hash = ?
	`, sourceID, hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Flashcard{}, err
		}
		return domain.Flashcard{}, fmt.Errorf("failed to find flashcard by hash %s: %w", hash, err)
	}
	return row.toDomain(), nil
}

// DeleteImportedFlashcard removes an imported card that disappeared from its source.
func (db *DB) DeleteImportedFlashcard(ctx context.Context, sourceID, cardID uuid.UUID) error {
	_, err := db.execContext(ctx, `DELETE FROM flashcards WHERE id = ? AND source_id = ?`, cardID, sourceID)
	if err != nil {
		return fmt.Errorf("failed to delete flashcard %s: %w", cardID, err)
	}
	return nil
}
