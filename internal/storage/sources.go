package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
)

type sourceRow struct {
	ID            uuid.UUID     `db:"id"`
	Path          string        `db:"path"`
	Type          string        `db:"type"`
	OwnerID       uuid.UUID     `db:"owner_id"`
	ContributedBy uuid.NullUUID `db:"contributed_by"`
	Visibility    string        `db:"visibility"`
	LastScanned   sql.NullTime  `db:"last_scanned"`
}

func (r sourceRow) toDomain() domain.Source {
	vis, _ := domain.ParseVisibility(r.Visibility)
	s := domain.Source{
		ID:            r.ID,
		Path:          r.Path,
		Type:          domain.SourceType(r.Type),
		OwnerID:       r.OwnerID,
		ContributedBy: uuidPtr(r.ContributedBy),
		Visibility:    vis,
	}
	if r.LastScanned.Valid {
		t := r.LastScanned.Time.UTC()
		s.LastScanned = &t
	}
	return s
}

const sourceColumns = `id, path, type, owner_id, contributed_by, visibility, last_scanned`

// InsertSource registers a deck source and returns it with its new ID.
func (db *DB) InsertSource(ctx context.Context, src domain.Source) (domain.Source, error) {
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}
	if !src.Visibility.IsValid() {
		src.Visibility = domain.VisibilityPrivate
	}
	_, err := db.execContext(ctx, `
		INSERT INTO sources (id, path, type, owner_id, contributed_by, visibility)
		VALUES (?, ?, ?, ?, ?, ?)
	`, src.ID, src.Path, string(src.Type), src.OwnerID, nullUUID(src.ContributedBy), string(src.Visibility))
	if err != nil {
		return domain.Source{}, fmt.Errorf("failed to insert source %s: %w", src.Path, err)
	}
	return src, nil
}

// FindSourceByPath retrieves a source by its path or URL.
func (db *DB) FindSourceByPath(ctx context.Context, path string) (domain.Source, error) {
	var row sourceRow
	err := db.getContext(ctx, &row, `SELECT `+sourceColumns+` FROM sources WHERE path = ?`, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Source{}, err
		}
		return domain.Source{}, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return row.toDomain(), nil
}

// GetAllSources retrieves all stored sources.
func (db *DB) GetAllSources(ctx context.Context) ([]domain.Source, error) {
	var rows []sourceRow
	if err := db.selectContext(ctx, &rows, `SELECT `+sourceColumns+` FROM sources ORDER BY path`); err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	return toSources(rows), nil
}

// SourcesOwnedBy retrieves the sources registered by ownerID.
func (db *DB) SourcesOwnedBy(ctx context.Context, ownerID uuid.UUID) ([]domain.Source, error) {
	var rows []sourceRow
	err := db.selectContext(ctx, &rows, `SELECT `+sourceColumns+` FROM sources WHERE owner_id = ? ORDER BY path`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources for owner %s: %w", ownerID, err)
	}
	return toSources(rows), nil
}

func toSources(rows []sourceRow) []domain.Source {
	sources := make([]domain.Source, 0, len(rows))
	for _, r := range rows {
		sources = append(sources, r.toDomain())
	}
	return sources
}

// UpdateSourceLastScanned records when a source was last reconciled.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, sourceID uuid.UUID, at time.Time) error {
	_, err := db.execContext(ctx, `UPDATE sources SET last_scanned = ? WHERE id = ?`, at.UTC(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source %s: %w", sourceID, err)
	}
	return nil
}

// DeleteSource removes a source owned by ownerID together with its imported cards.
func (db *DB) DeleteSource(ctx context.Context, ownerID, sourceID uuid.UUID) error {
	err := db.execOne(ctx, `DELETE FROM sources WHERE id = ? AND owner_id = ?`, sourceID, ownerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to delete source %s: %w", sourceID, err)
	}
	return err
}
