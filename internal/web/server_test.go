package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knolshare/internal/domain"
	"github.com/conorfennell/knolshare/internal/dueset"
	"github.com/conorfennell/knolshare/internal/schedule"
	"github.com/conorfennell/knolshare/internal/session"
	"github.com/conorfennell/knolshare/internal/storage"
	decksync "github.com/conorfennell/knolshare/internal/sync"
)

var day0 = time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)

type testAPI struct {
	t  *testing.T
	db *storage.DB
	h  http.Handler
}

func newTestAPI(t *testing.T, opts ...Option) *testAPI {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	opts = append([]Option{WithSeed(func() uint64 { return 7 })}, opts...)
	srv := NewServer(db, domain.FixedClock{T: day0}, time.UTC, t.TempDir(), opts...)
	return &testAPI{t: t, db: db, h: srv}
}

func (a *testAPI) do(user uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != uuid.Nil {
		req.Header.Set(UserHeader, user.String())
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) createCard(owner uuid.UUID, subject, vis string) domain.Flashcard {
	a.t.Helper()
	rec := a.do(owner, http.MethodPost, "/flashcards", map[string]any{
		"subject":    subject,
		"front":      map[string]string{"text": "front of " + subject},
		"back":       map[string]string{"text": "back of " + subject},
		"visibility": vis,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Flashcard](a.t, rec)
}

func TestAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(uuid.Nil, http.MethodGet, "/due", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/streak", nil)
	req.Header.Set(UserHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	api.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(uuid.Nil, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStudySessionFlow(t *testing.T) {
	api := newTestAPI(t)
	user := uuid.New()
	api.createCard(user, "Spanish", "")
	api.createCard(user, "Spanish", "")
	api.createCard(user, "Biology", "")

	due := decode[dueset.DueSet](t, api.do(user, http.MethodGet, "/due", nil))
	require.Len(t, due.Groups, 2)
	spanish, ok := due.Group("Spanish")
	require.True(t, ok)
	assert.Len(t, spanish.Cards, 2)
	assert.True(t, spanish.Cards[0].New)

	rec := api.do(user, http.MethodPost, "/session", map[string]string{"subject": "Chemistry"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(user, http.MethodPost, "/session", map[string]string{"subject": "Spanish"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	view := decode[session.View](t, rec)
	assert.Equal(t, session.Front, view.State)
	assert.Equal(t, 2, view.Total)
	assert.Nil(t, view.Back)

	rec = api.do(user, http.MethodPost, "/session/rate", map[string]string{"quality": "easy"})
	assert.Equal(t, http.StatusConflict, rec.Code, "rating before reveal")

	for i := 0; i < 2; i++ {
		rec = api.do(user, http.MethodPost, "/session/reveal", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotNil(t, decode[session.View](t, rec).Back)

		rec = api.do(user, http.MethodPost, "/session/rate", map[string]string{"quality": "easy"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rated := decode[rateResponse](t, rec)
		assert.Equal(t, domain.QualityEasy, rated.Event.Quality)
		assert.Equal(t, 7, rated.Event.IntervalDays)
	}

	view = decode[session.View](t, api.do(user, http.MethodGet, "/session", nil))
	assert.Equal(t, session.Complete, view.State)

	rec = api.do(user, http.MethodPost, "/session/restart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.Front, decode[session.View](t, rec).State)

	assert.Equal(t, http.StatusNoContent, api.do(user, http.MethodDelete, "/session", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(user, http.MethodGet, "/session", nil).Code)

	due = decode[dueset.DueSet](t, api.do(user, http.MethodGet, "/due", nil))
	require.Len(t, due.Groups, 1, "rated cards are not due for a week")
	assert.Equal(t, "Biology", due.Groups[0].Subject)

	assert.Equal(t, 1, decode[streakResponse](t, api.do(user, http.MethodGet, "/streak", nil)).Streak)

	st := decode[schedule.Stats](t, api.do(user, http.MethodGet, "/stats", nil))
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 2, st.CardsTracked)
	assert.InDelta(t, 1.0, st.Accuracy, 1e-9)

	history := decode[[]domain.ReviewEvent](t, api.do(user, http.MethodGet, "/history", nil))
	assert.Len(t, history, 2)
}

func TestFriendsUnlockFriendsTier(t *testing.T) {
	api := newTestAPI(t)
	alice, bob := uuid.New(), uuid.New()
	card := api.createCard(alice, "History", "friends")
	path := "/flashcards/" + card.ID.String()

	assert.Equal(t, http.StatusNotFound, api.do(bob, http.MethodGet, path, nil).Code)

	rec := api.do(bob, http.MethodPost, "/friends/"+alice.String(), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, api.do(bob, http.MethodGet, path, nil).Code, "pending is not enough")

	pending := decode[[]domain.Friendship](t, api.do(alice, http.MethodGet, "/friends/requests", nil))
	require.Len(t, pending, 1)
	assert.Equal(t, bob, pending[0].UserID)

	rec = api.do(alice, http.MethodPut, "/friends/"+bob.String(), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "accept is required")

	rec = api.do(alice, http.MethodPut, "/friends/"+bob.String(), map[string]bool{"accept": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.FriendshipAccepted, decode[domain.Friendship](t, rec).Status)

	assert.Equal(t, http.StatusOK, api.do(bob, http.MethodGet, path, nil).Code)
	friends := decode[friendsResponse](t, api.do(bob, http.MethodGet, "/friends", nil))
	assert.Equal(t, []uuid.UUID{alice}, friends.Friends)

	due := decode[dueset.DueSet](t, api.do(bob, http.MethodGet, "/due", nil))
	require.Len(t, due.Groups, 1)
	assert.Equal(t, card.ID, due.Groups[0].Cards[0].ID)

	assert.Equal(t, http.StatusNoContent, api.do(alice, http.MethodDelete, "/friends/"+bob.String(), nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(bob, http.MethodGet, path, nil).Code)

	rec = api.do(alice, http.MethodPost, "/friends/"+alice.String(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "self friendship")
}

func TestGroupSharing(t *testing.T) {
	api := newTestAPI(t)
	admin, member, outsider := uuid.New(), uuid.New(), uuid.New()
	card := api.createCard(admin, "Law", "private")

	rec := api.do(admin, http.MethodPost, "/groups", map[string]string{"name": "Bar exam"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	group := decode[domain.StudyGroup](t, rec)
	base := "/groups/" + group.ID.String()

	rec = api.do(outsider, http.MethodPost, base+"/members", map[string]string{"user_id": outsider.String()})
	assert.Equal(t, http.StatusNotFound, rec.Code, "only members add members")

	rec = api.do(admin, http.MethodPost, base+"/members", map[string]string{"user_id": member.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(member, http.MethodPost, base+"/cards", map[string]string{"flashcard_id": card.ID.String()})
	assert.Equal(t, http.StatusNotFound, rec.Code, "a member cannot share a card they cannot see")

	rec = api.do(admin, http.MethodPost, base+"/cards", map[string]string{"flashcard_id": card.ID.String()})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	due := decode[dueset.DueSet](t, api.do(member, http.MethodGet, "/due", nil))
	require.Len(t, due.Groups, 1)
	assert.Equal(t, card.ID, due.Groups[0].Cards[0].ID)

	due = decode[dueset.DueSet](t, api.do(outsider, http.MethodGet, "/due", nil))
	assert.Empty(t, due.Groups)
}

func TestFlashcardOwnership(t *testing.T) {
	api := newTestAPI(t)
	owner, other := uuid.New(), uuid.New()
	card := api.createCard(owner, "Art", "private")
	path := "/flashcards/" + card.ID.String()

	rec := api.do(other, http.MethodPut, path+"/visibility", map[string]string{"visibility": "public"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(owner, http.MethodPut, path+"/visibility", map[string]string{"visibility": "everyone"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(owner, http.MethodPut, path+"/visibility", map[string]string{"visibility": "public"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusOK, api.do(other, http.MethodGet, path, nil).Code)

	rec = api.do(owner, http.MethodPut, path, map[string]any{
		"custom_subject": "Renaissance",
		"front":          map[string]string{"text": "Who painted the Mona Lisa?"},
		"back":           map[string]string{"text": "Leonardo"},
		"visibility":     "public",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[domain.Flashcard](t, rec)
	assert.Equal(t, "Renaissance", updated.SubjectLabel())

	mine := decode[[]domain.Flashcard](t, api.do(owner, http.MethodGet, "/flashcards", nil))
	assert.Len(t, mine, 1)

	assert.Equal(t, http.StatusNotFound, api.do(other, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do(owner, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(owner, http.MethodGet, "/flashcards/nope", nil).Code)
}

func TestValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	user := uuid.New()

	rec := api.do(user, http.MethodPost, "/session", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "required", body.Fields["subject"])

	rec = api.do(user, http.MethodPost, "/flashcards", map[string]any{
		"front": map[string]string{"text": ""},
		"back":  map[string]string{"text": "b", "image_url": "not a url"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decode[errorResponse](t, rec)
	assert.Contains(t, body.Fields, "text")
	assert.Contains(t, body.Fields, "image_url")

	rec = api.do(user, http.MethodPost, "/groups", map[string]any{"name": "x", "extra": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	api.createCard(user, "Maths", "")
	require.Equal(t, http.StatusCreated, api.do(user, http.MethodPost, "/session", map[string]string{"subject": "Maths"}).Code)
	require.Equal(t, http.StatusOK, api.do(user, http.MethodPost, "/session/reveal", nil).Code)
	rec = api.do(user, http.MethodPost, "/session/rate", map[string]string{"quality": "great"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSourcesAndSync(t *testing.T) {
	root := t.TempDir()
	api := newTestAPI(t, WithLocalRoot(root))
	user := uuid.New()
	dir := filepath.Join(root, "geo")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "capitals.md"), []byte("Q: Capital of Peru?\nA: Lima\n"), 0o644))

	rec := api.do(user, http.MethodPost, "/sources", map[string]string{"path": "geo", "visibility": "public"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	src := decode[domain.Source](t, rec)
	assert.Equal(t, domain.SourceLocal, src.Type)
	assert.Equal(t, dir, src.Path, "relative paths resolve under the local root")

	rec = api.do(user, http.MethodPost, "/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	results := decode[syncResponse](t, rec).Results
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Inserted)

	// Imported public cards reach other users.
	due := decode[dueset.DueSet](t, api.do(uuid.New(), http.MethodGet, "/due", nil))
	require.Len(t, due.Groups, 1)
	assert.Equal(t, "capitals", due.Groups[0].Subject)

	sources := decode[[]domain.Source](t, api.do(user, http.MethodGet, "/sources", nil))
	require.Len(t, sources, 1)
	assert.NotNil(t, sources[0].LastScanned)

	assert.Equal(t, http.StatusNotFound, api.do(uuid.New(), http.MethodDelete, "/sources/"+src.ID.String(), nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do(user, http.MethodDelete, "/sources/"+src.ID.String(), nil).Code)
}

func TestSourcesAreConfinedAndOwnerScoped(t *testing.T) {
	root := t.TempDir()
	secrets := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(secrets, "secrets.md"), []byte("Q: db password\nA: hunter2\n"), 0o644))

	mallory := uuid.New()
	for _, path := range []string{secrets, "../" + filepath.Base(secrets), "/srv/decks.git", "file://" + secrets} {
		rec := newTestAPI(t).do(mallory, http.MethodPost, "/sources", map[string]string{"path": path})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "no local root: %s", path)
	}

	api := newTestAPI(t, WithLocalRoot(root))
	for _, path := range []string{secrets, filepath.Join("..", filepath.Base(secrets)), filepath.Join(root, "..", filepath.Base(secrets))} {
		rec := api.do(mallory, http.MethodPost, "/sources", map[string]string{"path": path})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "outside root: %s", path)
	}

	// Sources registered by someone else are neither listed nor synced.
	alice := uuid.New()
	_, err := api.db.InsertSource(context.Background(), domain.Source{Path: secrets, Type: domain.SourceLocal, OwnerID: alice})
	require.NoError(t, err)

	assert.Empty(t, decode[[]domain.Source](t, api.do(mallory, http.MethodGet, "/sources", nil)))
	rec := api.do(mallory, http.MethodPost, "/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[syncResponse](t, rec).Results)

	owned, err := api.db.FlashcardsOwnedBy(context.Background(), alice)
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestSyncUsesInjectedSyncer(t *testing.T) {
	api := newTestAPI(t)
	var fetched int
	fetch := func(context.Context, string, string) error { fetched++; return nil }
	srv := NewServer(api.db, domain.FixedClock{T: day0}, time.UTC, t.TempDir(),
		WithSyncer(decksync.New(api.db, t.TempDir(), domain.FixedClock{T: day0}, decksync.WithFetch(fetch))))
	api.h = srv

	user := uuid.New()
	rec := api.do(user, http.MethodPost, "/sources", map[string]string{"path": "git@github.com:acme/decks.git"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, domain.SourceGit, decode[domain.Source](t, rec).Type)

	rec = api.do(user, http.MethodPost, "/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fetched)
}

func TestStorageFailureIs503(t *testing.T) {
	api := newTestAPI(t)
	require.NoError(t, api.db.Close())

	assert.Equal(t, http.StatusServiceUnavailable, api.do(uuid.New(), http.MethodGet, "/due", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, api.do(uuid.New(), http.MethodGet, "/streak", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, api.do(uuid.Nil, http.MethodGet, "/healthz", nil).Code)
}
