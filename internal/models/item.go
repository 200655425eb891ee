// Package models defines core data structures for source items, queries, and search results.
package models

import (
	"path/filepath"
	"strings"
)

// ItemKind tells the embedder which tower to run for a source item.
type ItemKind string

const (
	// KindImage is a raster image file (jpg, png, bmp, gif, webp).
	KindImage ItemKind = "image"
	// KindText is a document whose extracted text is embedded.
	KindText ItemKind = "text"
)

// SourceItem is one item offered to the indexing pipeline.
// ID is the identifier stored in the index (usually the file path); it need not be unique.
type SourceItem struct {
	ID   string   `json:"id"`
	Path string   `json:"path"`
	Kind ItemKind `json:"kind"`
}

// NewFileItem returns a SourceItem for a file, identified by its path.
// kind is derived from the extension: imageExts selects KindImage, anything else KindText.
func NewFileItem(path string, imageExts []string) SourceItem {
	kind := KindText
	if HasExtension(path, imageExts) {
		kind = KindImage
	}
	return SourceItem{ID: path, Path: path, Kind: kind}
}

// HasExtension reports whether path's extension is in exts (case-insensitive, dot optional).
func HasExtension(path string, exts []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.ToLower(strings.TrimPrefix(e, ".")) == ext {
			return true
		}
	}
	return false
}
