package indexer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hyperjump/gazou/internal/models"
)

// CollectItems walks dir recursively in lexical order and returns an item for every regular
// file whose extension is in imageExts or textExts. Image extensions select KindImage.
// Hidden directories are skipped. Paths are absolute.
func CollectItems(dir string, imageExts, textExts []string) ([]models.SourceItem, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}

	items := make([]models.SourceItem, 0)
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !Accepts(path, imageExts, textExts) {
			return nil
		}
		// Resolve symlinks so we only index regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		items = append(items, models.NewFileItem(path, imageExts))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absDir, err)
	}
	return items, nil
}

// Accepts reports whether path has one of the indexable extensions.
func Accepts(path string, imageExts, textExts []string) bool {
	return models.HasExtension(path, imageExts) || models.HasExtension(path, textExts)
}

func isHidden(name string) bool {
	return len(name) > 1 && name[0] == '.'
}
