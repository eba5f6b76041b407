package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
)

// CreateGroup stores a group and makes its admin the first member.
func (db *DB) CreateGroup(ctx context.Context, g *domain.StudyGroup) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO study_groups (id, name, admin_id) VALUES (?, ?, ?)`),
		g.ID, g.Name, g.AdminID); err != nil {
		return fmt.Errorf("failed to insert group %q: %w", g.Name, err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`),
		g.ID, g.AdminID); err != nil {
		return fmt.Errorf("failed to add admin to group %q: %w", g.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group %q: %w", g.Name, err)
	}
	return nil
}

// AddGroupMember adds userID to a group; adding an existing member is a no-op.
func (db *DB) AddGroupMember(ctx context.Context, groupID, userID uuid.UUID) error {
	_, err := db.execContext(ctx, `
		INSERT INTO group_members (group_id, user_id) VALUES (?, ?)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to add member %s to group %s: %w", userID, groupID, err)
	}
	return nil
}

// IsGroupMember reports whether userID belongs to groupID.
func (db *DB) IsGroupMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var n int
	err := db.getContext(ctx, &n, `
		SELECT COUNT(*) FROM group_members WHERE group_id = ? AND user_id = ?
	`, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check membership of %s in %s: %w", userID, groupID, err)
	}
	return n > 0, nil
}

// ShareFlashcard shares a card into a group. The caller must be a member.
func (db *DB) ShareFlashcard(ctx context.Context, sharerID, groupID, cardID uuid.UUID) error {
	member, err := db.IsGroupMember(ctx, groupID, sharerID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("user %s is not in group %s: %w", sharerID, groupID, domain.ErrNotFound)
	}
	_, err = db.execContext(ctx, `
		INSERT INTO group_shared_cards (group_id, flashcard_id) VALUES (?, ?)
		ON CONFLICT (group_id, flashcard_id) DO NOTHING
	`, groupID, cardID)
	if err != nil {
		return fmt.Errorf("failed to share card %s into group %s: %w", cardID, groupID, err)
	}
	return nil
}

// GroupSharedFlashcardIDs returns the IDs of cards shared into any group userID belongs to.
func (db *DB) GroupSharedFlashcardIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.selectContext(ctx, &ids, `
		SELECT DISTINCT gs.flashcard_id
		FROM group_shared_cards gs
		JOIN group_members gm ON gm.group_id = gs.group_id
		WHERE gm.user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group shared cards for user %s: %w", userID, err)
	}
	return ids, nil
}
