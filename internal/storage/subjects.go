package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
)

// EnsureSubject returns the catalog subject with the given name, creating it
// when it does not exist yet.
func (db *DB) EnsureSubject(ctx context.Context, name string) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, fmt.Errorf("%w: empty subject name", domain.ErrInvalidArgument)
	}

	var id uuid.UUID
	err := db.getContext(ctx, &id, `SELECT id FROM subjects WHERE name = ?`, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("failed to find subject %q: %w", name, err)
	}

	id = uuid.New()
	_, err = db.execContext(ctx, `
		INSERT INTO subjects (id, name) VALUES (?, ?)
		ON CONFLICT (name) DO NOTHING
	`, id, name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert subject %q: %w", name, err)
	}
	// Re-read in case a concurrent insert won.
	if err := db.getContext(ctx, &id, `SELECT id FROM subjects WHERE name = ?`, name); err != nil {
		return uuid.Nil, fmt.Errorf("failed to read subject %q: %w", name, err)
	}
	return id, nil
}
