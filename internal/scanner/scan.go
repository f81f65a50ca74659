package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"memedex/internal/catalog"
	"memedex/internal/logging"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// Importer walks a watched source directory and registers unseen images as
// not_started items.
type Importer struct {
	store  *catalog.Store
	logger *slog.Logger
}

// NewImporter wires the import routine.
func NewImporter(store *catalog.Store, logger *slog.Logger) *Importer {
	return &Importer{
		store:  store,
		logger: logging.WithComponent(logger, "importer"),
	}
}

// ScanSource imports new images under the source's directory and returns the
// number of items created. Already-known rel paths are left untouched.
func (i *Importer) ScanSource(ctx context.Context, source *catalog.WatchedSource) (int, error) {
	if source == nil {
		return 0, fmt.Errorf("scan requires a source")
	}

	created := 0
	err := filepath.WalkDir(source.Path, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := imageExtensions[ext]; !ok {
			return nil
		}
		relPath, err := filepath.Rel(source.Path, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		_, isNew, err := i.store.InsertItemIfNew(ctx, source.ID, relPath, deriveTitle(relPath))
		if err != nil {
			return err
		}
		if isNew {
			created++
		}
		return nil
	})
	if err != nil {
		return created, fmt.Errorf("scan %s: %w", source.Path, err)
	}

	if created > 0 {
		i.logger.Info("scan imported new items",
			logging.SourceID(source.ID), logging.Int("created", created))
	}
	return created, nil
}

// Scan adapts ScanSource to the scheduler's ScanFunc shape.
func (i *Importer) Scan(ctx context.Context, source *catalog.WatchedSource) error {
	_, err := i.ScanSource(ctx, source)
	return err
}

func deriveTitle(relPath string) string {
	base := filepath.Base(relPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Untitled"
	}
	return cases.Title(language.Und).String(title)
}
