package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/conorfennell/knolshare/internal/config"
	"github.com/conorfennell/knolshare/internal/domain"
	"github.com/conorfennell/knolshare/internal/storage"
	decksync "github.com/conorfennell/knolshare/internal/sync"
	"github.com/conorfennell/knolshare/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("knolshare failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("knolshare", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	serve := flags.Bool("serve", false, "Run the HTTP API (the default action)")
	doSync := flags.Bool("sync", false, "Import all registered deck sources and exit")
	addSource := flags.String("add-source", "", "Register a local directory or git URL as a deck source")
	owner := flags.String("owner", "", "Owner user ID for --add-source")
	contributedBy := flags.String("contributed-by", "", "Contributor user ID recorded on imported cards")
	vis := flags.String("visibility", "private", "Visibility of cards imported from --add-source")
	migrateOnly := flags.Bool("migrate-only", false, "Apply database migrations and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	actions := 0
	for _, set := range []bool{*serve, *doSync, *addSource != "", *migrateOnly} {
		if set {
			actions++
		}
	}
	if actions > 1 {
		return errors.New("choose one of --serve, --sync, --add-source or --migrate-only")
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	slog.SetDefault(cfg.Log.NewLogger(os.Stderr))

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := storage.Open(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("Database opened", "driver", cfg.DB.Driver)

	switch {
	case *migrateOnly:
		v, err := db.Version(ctx)
		if err != nil {
			return err
		}
		slog.Info("Migrations applied", "version", v)
		return nil
	case *addSource != "":
		return addNewSource(ctx, db, *addSource, *owner, *contributedBy, *vis)
	case *doSync:
		results, err := decksync.New(db, cfg.Repos.Dir, domain.SystemClock{}).RunAll(ctx)
		if err != nil {
			return err
		}
		for _, r := range results {
			if len(r.Errors) > 0 {
				slog.Warn("Source synced with errors", "path", r.Path, "errors", r.Errors)
			}
		}
		return nil
	default:
		return serveHTTP(ctx, cfg, db, loc)
	}
}

func addNewSource(ctx context.Context, db *storage.DB, path, owner, contributedBy, vis string) error {
	ownerID, err := uuid.Parse(owner)
	if err != nil {
		return fmt.Errorf("--owner must be a user ID: %w", err)
	}
	src, err := decksync.NewSource(path, ownerID, vis)
	if err != nil {
		return err
	}
	if src.Type == domain.SourceLocal {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		src.Path = abs
	}
	if contributedBy != "" {
		id, err := uuid.Parse(contributedBy)
		if err != nil {
			return fmt.Errorf("--contributed-by must be a user ID: %w", err)
		}
		src.ContributedBy = &id
	}

	created, err := db.InsertSource(ctx, src)
	if err != nil {
		return err
	}
	slog.Info("Source added", "id", created.ID, "type", created.Type, "path", created.Path, "visibility", created.Visibility)
	return nil
}

func serveHTTP(ctx context.Context, cfg *config.Config, db *storage.DB, loc *time.Location) error {
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           web.NewServer(db, domain.SystemClock{}, loc, cfg.Repos.Dir, web.WithLocalRoot(cfg.Repos.LocalRoot)),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", cfg.HTTP.Addr, "timezone", loc.String())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
