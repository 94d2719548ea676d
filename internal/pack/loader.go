// Package pack loads content packs from disk: a manifest.yaml plus
// markdown content files with YAML frontmatter. The loader produces the
// parsed records the chunker and indexer consume; nothing downstream
// touches the filesystem.
package pack

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/fablekit/lorekit/internal/errors"
	"github.com/fablekit/lorekit/internal/lore"
)

// ManifestFileName is the required manifest file within a pack directory.
const ManifestFileName = "manifest.yaml"

// maxContentFileSize guards against indexing something that is not lore.
const maxContentFileSize = 10 * 1024 * 1024

// Pack is a fully loaded content pack.
type Pack struct {
	Manifest *lore.PackManifest
	Files    []*lore.SourceFile
	Dir      string
}

// Loader reads packs from disk.
type Loader struct {
	logger  *slog.Logger
	workers int
}

// NewLoader creates a pack loader. A nil logger falls back to slog.Default.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger:  logger,
		workers: runtime.NumCPU(),
	}
}

// LoadPack loads the pack rooted at dir. Content files are parsed
// concurrently; an unreadable or malformed file fails the whole load so
// a broken pack never half-indexes.
func (l *Loader) LoadPack(ctx context.Context, dir string) (*Pack, error) {
	manifest, err := l.loadManifest(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return nil, err
	}

	paths, err := contentFiles(dir)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileUnreadable,
			"failed to list pack content files", err).
			WithDetail("dir", dir)
	}

	files := make([]*lore.SourceFile, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sf, err := parseSourceFile(dir, path)
			if err != nil {
				return err
			}
			files[i] = sf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.logger.Debug("pack loaded",
		slog.String("pack_id", manifest.ID),
		slog.Int("files", len(files)))

	return &Pack{Manifest: manifest, Files: files, Dir: dir}, nil
}

// LoadAll loads every pack directory directly under root. Directories
// without a manifest are skipped; a pack that fails to load is logged
// and skipped so one broken pack cannot block the rest.
func (l *Loader) LoadAll(ctx context.Context, root string) ([]*Pack, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileUnreadable,
			"failed to read packs directory", err).
			WithDetail("dir", root)
	}

	var packs []*Pack
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, ManifestFileName)); err != nil {
			continue
		}
		p, err := l.LoadPack(ctx, dir)
		if err != nil {
			l.logger.Warn("skipping pack that failed to load",
				slog.String("dir", dir),
				slog.String("error", err.Error()))
			continue
		}
		packs = append(packs, p)
	}

	sort.Slice(packs, func(i, j int) bool { return packs[i].Manifest.ID < packs[j].Manifest.ID })
	return packs, nil
}

func (l *Loader) loadManifest(path string) (*lore.PackManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrCodePackNotFound,
				"no %s found in pack directory", ManifestFileName).
				WithDetail("path", path)
		}
		return nil, errors.New(errors.ErrCodeFileUnreadable, "failed to read manifest", err).
			WithDetail("path", path)
	}

	var m lore.PackManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.ManifestError("failed to parse manifest", err).
			WithDetail("path", path).
			WithSuggestion("check the YAML syntax")
	}
	if strings.TrimSpace(m.ID) == "" {
		return nil, errors.ManifestError("manifest is missing the required 'id' field", nil).
			WithDetail("path", path)
	}
	if m.Layer == "" {
		m.Layer = lore.LayerSourcebook
	}
	return &m, nil
}

// contentFiles returns the markdown files under dir in sorted relative
// path order. Hidden files and directories are skipped.
func contentFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".md") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// parseSourceFile reads and parses one content file into a SourceFile.
func parseSourceFile(dir, rel string) (*lore.SourceFile, error) {
	full := filepath.Join(dir, rel)
	info, err := os.Stat(full)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileUnreadable, "failed to stat content file", err).
			WithDetail("path", rel)
	}
	if info.Size() > maxContentFileSize {
		return nil, errors.Newf(errors.ErrCodeFileUnreadable,
			"content file exceeds %dMB", maxContentFileSize/(1024*1024)).
			WithDetail("path", rel)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileUnreadable, "failed to read content file", err).
			WithDetail("path", rel)
	}

	header, body := splitFrontmatter(string(data))
	fm, err := parseFrontmatter(header)
	if err != nil {
		return nil, errors.New(errors.ErrCodeManifestInvalid,
			"failed to parse file frontmatter", err).
			WithDetail("path", rel).
			WithSuggestion("check the YAML between the --- delimiters")
	}

	title := fm.Title
	if title == "" {
		title = firstHeading(body)
	}

	return &lore.SourceFile{
		Path:        rel,
		Type:        fm.Type,
		Title:       title,
		Body:        body,
		EntityID:    fm.EntityID,
		Tags:        fm.Tags,
		EntityRefs:  fm.EntityRefs,
		Frontmatter: fm.rest,
	}, nil
}
