package friends

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knolshare/internal/domain"
	"github.com/conorfennell/knolshare/internal/storage"
)

func newAccessor(t *testing.T) (*Accessor, *storage.DB) {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAccessor(db, domain.FixedClock{T: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}), db
}

func TestAcceptedPeers_EmptyIsNotAnError(t *testing.T) {
	a, _ := newAccessor(t)
	peers, err := a.AcceptedPeers(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, peers.Len())
}

func TestAcceptedPeers_BothDirectionsNoTransitivity(t *testing.T) {
	a, _ := newAccessor(t)
	ctx := context.Background()
	me, sentByMe, sentToMe, friendOfFriend, stillPending := uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()

	_, err := a.Request(ctx, me, sentByMe)
	require.NoError(t, err)
	_, err = a.Respond(ctx, sentByMe, me, true)
	require.NoError(t, err)

	_, err = a.Request(ctx, sentToMe, me)
	require.NoError(t, err)
	_, err = a.Respond(ctx, me, sentToMe, true)
	require.NoError(t, err)

	_, err = a.Request(ctx, sentByMe, friendOfFriend)
	require.NoError(t, err)
	_, err = a.Respond(ctx, friendOfFriend, sentByMe, true)
	require.NoError(t, err)

	_, err = a.Request(ctx, me, stillPending)
	require.NoError(t, err)

	peers, err := a.AcceptedPeers(ctx, me)
	require.NoError(t, err)
	assert.Equal(t, 2, peers.Len())
	assert.True(t, peers.Has(sentByMe))
	assert.True(t, peers.Has(sentToMe))
	assert.False(t, peers.Has(friendOfFriend))
	assert.False(t, peers.Has(stillPending))
}

func TestRequest(t *testing.T) {
	a, _ := newAccessor(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	_, err := a.Request(ctx, alice, alice)
	assert.ErrorIs(t, err, domain.ErrSelfFriendship)

	_, err = a.Request(ctx, uuid.Nil, bob)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	f, err := a.Request(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, domain.FriendshipPending, f.Status)

	// Bob asking back is treated as accepting.
	f, err = a.Request(ctx, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.FriendshipAccepted, f.Status)

	// Asking again keeps the accepted row.
	f, err = a.Request(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, domain.FriendshipAccepted, f.Status)
}

func TestRespond_RejectThenRequestAgain(t *testing.T) {
	a, _ := newAccessor(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	_, err := a.Request(ctx, alice, bob)
	require.NoError(t, err)

	_, err = a.Respond(ctx, alice, bob, true)
	assert.ErrorIs(t, err, domain.ErrNotFound, "the requester cannot accept their own request")

	pending, err := a.Pending(ctx, bob)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, alice, pending[0].UserID)

	f, err := a.Respond(ctx, bob, alice, false)
	require.NoError(t, err)
	assert.Equal(t, domain.FriendshipRejected, f.Status)

	peers, err := a.AcceptedPeers(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, peers.Len())

	f, err = a.Request(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, domain.FriendshipPending, f.Status)
}

func TestRemove(t *testing.T) {
	a, _ := newAccessor(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	assert.ErrorIs(t, a.Remove(ctx, alice, bob), domain.ErrNotFound)

	_, err := a.Request(ctx, alice, bob)
	require.NoError(t, err)
	_, err = a.Respond(ctx, bob, alice, true)
	require.NoError(t, err)
	require.NoError(t, a.Remove(ctx, bob, alice))

	peers, err := a.AcceptedPeers(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, peers.Len())
}

type failingStore struct{ Store }

func (failingStore) FriendshipsByStatus(context.Context, uuid.UUID, domain.FriendshipStatus) ([]domain.Friendship, error) {
	return nil, errors.New("connection reset")
}

func TestAcceptedPeers_StorageError(t *testing.T) {
	a := NewAccessor(failingStore{}, domain.SystemClock{})
	_, err := a.AcceptedPeers(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}
