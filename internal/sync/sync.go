package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
	"github.com/conorfennell/knolshare/internal/gitsource"
	"github.com/conorfennell/knolshare/internal/knol"
	"github.com/conorfennell/knolshare/internal/parser"
)

// Store is the storage surface an import needs.
type Store interface {
	GetAllSources(ctx context.Context) ([]domain.Source, error)
	SourcesOwnedBy(ctx context.Context, ownerID uuid.UUID) ([]domain.Source, error)
	FlashcardsBySource(ctx context.Context, sourceID uuid.UUID) ([]domain.Flashcard, error)
	InsertFlashcard(ctx context.Context, card *domain.Flashcard) error
	DeleteImportedFlashcard(ctx context.Context, sourceID, cardID uuid.UUID) error
	UpdateSourceLastScanned(ctx context.Context, sourceID uuid.UUID, at time.Time) error
}

// FetchFunc brings a git repository at url up to date in localPath.
type FetchFunc func(ctx context.Context, url, localPath string) error

// Result summarizes the reconciliation of one source.
type Result struct {
	SourceID uuid.UUID `json:"source_id"`
	Path     string    `json:"path"`
	Parsed   int       `json:"parsed"`
	Inserted int       `json:"inserted"`
	Deleted  int       `json:"deleted"`
	Errors   []string  `json:"errors,omitempty"`
}

// Syncer imports Markdown decks from registered sources as flashcards.
type Syncer struct {
	store    Store
	reposDir string
	clock    domain.Clock
	fetch    FetchFunc
}

// Option customizes a Syncer.
type Option func(*Syncer)

// WithFetch replaces the git fetcher.
func WithFetch(f FetchFunc) Option {
	return func(s *Syncer) { s.fetch = f }
}

// New returns a Syncer that checks git sources out under reposDir.
func New(store Store, reposDir string, clock domain.Clock, opts ...Option) *Syncer {
	s := &Syncer{store: store, reposDir: reposDir, clock: clock, fetch: gitsource.Sync}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunAll reconciles every registered source. A failing source is logged and
// reported in its Result; only a failure to list sources aborts the run.
func (s *Syncer) RunAll(ctx context.Context) ([]Result, error) {
	slog.Info("Starting sync process for all sources")
	sources, err := s.store.GetAllSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}

	if len(sources) == 0 {
		slog.Info("No sources configured. Add one with --add-source <path/or/url.git>")
		return nil, nil
	}
	return s.run(ctx, sources)
}

// RunOwned reconciles only the sources registered by ownerID.
func (s *Syncer) RunOwned(ctx context.Context, ownerID uuid.UUID) ([]Result, error) {
	if ownerID == uuid.Nil {
		return nil, domain.ErrNotAuthenticated
	}
	sources, err := s.store.SourcesOwnedBy(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	slog.Info("Starting sync process for owner", "owner_id", ownerID, "sources", len(sources))
	return s.run(ctx, sources)
}

func (s *Syncer) run(ctx context.Context, sources []domain.Source) ([]Result, error) {
	results := make([]Result, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.SyncSource(ctx, src)
		if err != nil {
			slog.Error("Error syncing source", "source_id", src.ID, "path", src.Path, "error", err)
			res.Errors = append(res.Errors, err.Error())
		}
		results = append(results, res)
	}
	slog.Info("Sync process complete", "sources", len(results))
	return results, nil
}

// SyncSource reconciles one source: new entries are inserted with the
// source's owner, contributor and visibility, entries no longer present are
// deleted. Review history is never touched.
func (s *Syncer) SyncSource(ctx context.Context, src domain.Source) (Result, error) {
	res := Result{SourceID: src.ID, Path: src.Path}
	slog.Info("Syncing source", "source_id", src.ID, "type", src.Type, "path", src.Path)

	dir := src.Path
	if src.Type == domain.SourceGit {
		localPath, err := gitsource.LocalPath(s.reposDir, src.Path)
		if err != nil {
			return res, err
		}
		if err := s.fetch(ctx, src.Path, localPath); err != nil {
			return res, err
		}
		dir = localPath
	}

	entries, parseErrs, err := scanDir(dir)
	if err != nil {
		return res, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	for _, e := range parseErrs {
		res.Errors = append(res.Errors, e.Error())
	}
	res.Parsed = len(entries)

	existing, err := s.store.FlashcardsBySource(ctx, src.ID)
	if err != nil {
		return res, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	known := make(map[string]uuid.UUID, len(existing))
	for _, c := range existing {
		known[c.ContentHash] = c.ID
	}

	found := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		found[e.entry.Hash] = struct{}{}
		if _, ok := known[e.entry.Hash]; ok {
			continue
		}
		card := toFlashcard(src, e)
		card.CreatedAt = s.clock.Now().UTC()
		if err := s.store.InsertFlashcard(ctx, &card); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("insert %s: %v", e.entry.Hash, err))
			continue
		}
		slog.Debug("New card imported", "hash", e.entry.Hash, "card_id", card.ID)
		res.Inserted++
	}

	for hash, id := range known {
		if _, ok := found[hash]; ok {
			continue
		}
		if err := s.store.DeleteImportedFlashcard(ctx, src.ID, id); err != nil {
			slog.Warn("Failed to delete orphaned card", "hash", hash, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("delete %s: %v", hash, err))
			continue
		}
		res.Deleted++
	}

	if err := s.store.UpdateSourceLastScanned(ctx, src.ID, s.clock.Now()); err != nil {
		slog.Warn("Failed to update last scanned for source", "source_id", src.ID, "error", err)
	}

	slog.Info("Reconciliation complete",
		"path", src.Path,
		"parsed", res.Parsed,
		"inserted", res.Inserted,
		"deleted", res.Deleted,
		"errors", len(res.Errors),
	)
	return res, nil
}

type fileEntry struct {
	entry domain.DeckEntry
	file  string
}

// scanDir parses every .md file under dir. Parse failures are collected
// rather than aborting the walk.
func scanDir(dir string) ([]fileEntry, []error, error) {
	var out []fileEntry
	var parseErrs []error
	seen := make(map[string]struct{})

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		parsed, err := parser.ParseFile(path)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("parsing %s: %w", path, err))
			return nil
		}
		for _, e := range knol.Stamp(parsed) {
			if _, dup := seen[e.Hash]; dup {
				continue
			}
			seen[e.Hash] = struct{}{}
			out = append(out, fileEntry{entry: e, file: path})
		}
		return nil
	})
	if walkErr != nil {
		return nil, nil, walkErr
	}
	return out, parseErrs, nil
}

func toFlashcard(src domain.Source, e fileEntry) domain.Flashcard {
	subject := strings.TrimSpace(e.entry.Context)
	if subject == "" {
		base := filepath.Base(e.file)
		subject = strings.TrimSuffix(base, filepath.Ext(base))
	}
	sourceID := src.ID
	return domain.Flashcard{
		OwnerID:       src.OwnerID,
		ContributedBy: src.ContributedBy,
		CustomSubject: subject,
		Front:         domain.Side{Text: e.entry.Question},
		Back:          domain.Side{Text: e.entry.Answer},
		Visibility:    src.Visibility,
		ContentHash:   e.entry.Hash,
		SourceID:      &sourceID,
	}
}

// ResolveLocalPath turns a local deck directory into an absolute path inside
// root. Relative paths are taken relative to root. An empty root, or a path
// that leaves root once cleaned or once symlinks are followed, is rejected with
// domain.ErrInvalidArgument.
func ResolveLocalPath(root, path string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: local sources are disabled, use a git URL", domain.ErrInvalidArgument)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(absRoot, p)
	}
	p = filepath.Clean(p)
	if !within(absRoot, p) {
		return "", fmt.Errorf("%w: %s is outside %s", domain.ErrInvalidArgument, path, absRoot)
	}

	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", absRoot, err)
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil && !within(realRoot, resolved) {
		return "", fmt.Errorf("%w: %s links outside %s", domain.ErrInvalidArgument, path, absRoot)
	}
	return p, nil
}

// within reports whether target is dir or below it.
func within(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// NewSource builds an unsaved source for path. An empty visibility means
// private.
func NewSource(path string, owner uuid.UUID, vis string) (domain.Source, error) {
	src := domain.Source{Path: path, Type: domain.SourceLocal, OwnerID: owner, Visibility: domain.VisibilityPrivate}
	if gitsource.IsGitURL(path) {
		src.Type = domain.SourceGit
	}
	if vis != "" {
		v, err := domain.ParseVisibility(vis)
		if err != nil {
			return domain.Source{}, err
		}
		src.Visibility = v
	}
	return src, nil
}
