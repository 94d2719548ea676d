package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gofrs/flock"

	"github.com/fablekit/lorekit/internal/config"
	"github.com/fablekit/lorekit/internal/errors"
	"github.com/fablekit/lorekit/internal/index"
	"github.com/fablekit/lorekit/internal/logging"
	"github.com/fablekit/lorekit/internal/retrieve"
	"github.com/fablekit/lorekit/internal/scenecache"
	"github.com/fablekit/lorekit/internal/store"
	"github.com/fablekit/lorekit/internal/vector"
)

// app holds the wired storage surfaces for one command run. Close it
// when done; closing persists the vector store.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    store.Store
	fulltext store.FullTextIndex
	vectors  vector.Store

	logCleanup func()
	lock       *flock.Flock
}

// openApp opens the data directory's storage surfaces. CLI commands log
// to the data dir's log file; stderr stays clean for command output.
func openApp(cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	logger, logCleanup, err := logging.Setup(logging.Config{
		Level:    cfg.Log.Level,
		FilePath: cfg.LogPath(),
	})
	if err != nil {
		return nil, err
	}

	st, err := store.NewSQLiteStore(cfg.StorePath(), logger)
	if err != nil {
		logCleanup()
		return nil, err
	}

	ft, err := store.NewFullTextIndex(cfg.FullTextBasePath(), cfg.FullTextStoreConfig(), logger)
	if err != nil {
		_ = st.Close()
		logCleanup()
		return nil, err
	}

	vec, err := vector.New(cfg.Vector, logger)
	if err != nil {
		_ = ft.Close()
		_ = st.Close()
		logCleanup()
		return nil, err
	}
	if hs, ok := vec.(*vector.HNSWStore); ok {
		if err := hs.Load(cfg.VectorDir()); err != nil {
			logger.Warn("failed to load vector store, starting fresh",
				slog.String("error", err.Error()))
		}
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		fulltext:   ft,
		vectors:    vec,
		logCleanup: logCleanup,
	}, nil
}

// acquireLock takes the exclusive index lock. Concurrent indexers would
// interleave writes across the three surfaces.
func (a *app) acquireLock() error {
	lock := flock.New(a.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	if !locked {
		return errors.Newf(errors.ErrCodeIndexLocked,
			"another lorekit process is indexing this data directory").
			WithSuggestion("wait for it to finish or remove a stale " + a.cfg.LockPath())
	}
	a.lock = lock
	return nil
}

// close persists the vector store and releases every resource.
func (a *app) close() {
	if hs, ok := a.vectors.(*vector.HNSWStore); ok {
		if err := hs.Save(a.cfg.VectorDir()); err != nil {
			a.logger.Error("failed to persist vector store",
				slog.String("error", err.Error()))
		}
	}
	_ = a.vectors.Close()
	_ = a.fulltext.Close()
	_ = a.store.Close()
	if a.lock != nil {
		_ = a.lock.Unlock()
	}
	a.logCleanup()
}

func (a *app) indexer() (*index.Indexer, error) {
	return index.New(index.Config{
		Store:    a.store,
		FullText: a.fulltext,
		Vectors:  a.vectors,
		Logger:   a.logger,
	})
}

func (a *app) retriever() (*retrieve.Retriever, error) {
	return retrieve.New(retrieve.Config{
		Store:     a.store,
		FullText:  a.fulltext,
		Vectors:   a.vectors,
		CacheSize: a.cfg.Retrieval.CacheSize,
		Logger:    a.logger,
	})
}

func (a *app) sceneCache() *scenecache.Cache {
	return scenecache.New(a.store, a.logger)
}
