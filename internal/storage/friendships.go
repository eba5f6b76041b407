package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
)

type friendshipRow struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	FriendID  uuid.UUID `db:"friend_id"`
	Status    string    `db:"status"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r friendshipRow) toDomain() domain.Friendship {
	return domain.Friendship{
		ID:        r.ID,
		UserID:    r.UserID,
		FriendID:  r.FriendID,
		Status:    domain.FriendshipStatus(r.Status),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func orderedPair(a, b uuid.UUID) (string, string) {
	lo, hi := a.String(), b.String()
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo, hi
}

// UpsertFriendship writes the row for the unordered pair (f.UserID, f.FriendID),
// replacing direction and status of any existing row for the same pair.
func (db *DB) UpsertFriendship(ctx context.Context, f domain.Friendship) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now()
	}
	lo, hi := orderedPair(f.UserID, f.FriendID)
	_, err := db.execContext(ctx, `
		INSERT INTO friendships (id, user_id, friend_id, pair_lo, pair_hi, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (pair_lo, pair_hi) DO UPDATE SET
			user_id = excluded.user_id,
			friend_id = excluded.friend_id,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, f.ID, f.UserID, f.FriendID, lo, hi, string(f.Status), f.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert friendship %s-%s: %w", f.UserID, f.FriendID, err)
	}
	return nil
}

// FindFriendship returns the row for the unordered pair (a, b).
func (db *DB) FindFriendship(ctx context.Context, a, b uuid.UUID) (domain.Friendship, error) {
	lo, hi := orderedPair(a, b)
	var row friendshipRow
	err := db.getContext(ctx, &row, `
		SELECT id, user_id, friend_id, status, updated_at
		FROM friendships WHERE pair_lo = ? AND pair_hi = ?
	`, lo, hi)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Friendship{}, err
		}
		return domain.Friendship{}, fmt.Errorf("failed to find friendship %s-%s: %w", a, b, err)
	}
	return row.toDomain(), nil
}

// DeleteFriendship removes the row for the unordered pair (a, b).
func (db *DB) DeleteFriendship(ctx context.Context, a, b uuid.UUID) error {
	lo, hi := orderedPair(a, b)
	err := db.execOne(ctx, `DELETE FROM friendships WHERE pair_lo = ? AND pair_hi = ?`, lo, hi)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to delete friendship %s-%s: %w", a, b, err)
	}
	return err
}

// FriendshipsByStatus returns rows in the given status with userID on either side.
func (db *DB) FriendshipsByStatus(ctx context.Context, userID uuid.UUID, status domain.FriendshipStatus) ([]domain.Friendship, error) {
	var rows []friendshipRow
	err := db.selectContext(ctx, &rows, `
		SELECT id, user_id, friend_id, status, updated_at
		FROM friendships
		WHERE status = ? AND (user_id = ? OR friend_id = ?)
		ORDER BY updated_at, id
	`, string(status), userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s friendships for user %s: %w", status, userID, err)
	}

	out := make([]domain.Friendship, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
