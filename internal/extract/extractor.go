// Package extract reads the text of document items so they can be embedded by the text tower.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for extensions no extractor handles.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// SupportedExtensions lists the document extensions Extract understands.
var SupportedExtensions = []string{".txt", ".md", ".pdf", ".xlsx"}

// Extractor extracts plain text from document files.
type Extractor struct {
	maxChars int
}

// NewExtractor returns an Extractor. maxChars caps the returned text in runes; 0 means unlimited.
func NewExtractor(maxChars int) *Extractor {
	return &Extractor{maxChars: maxChars}
}

// Extract reads the file at path and returns its text content with whitespace collapsed.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(ext) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on ext, which includes the leading dot.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(ext) {
	case ".pdf":
		text, err = extractPDF(content, e.maxChars)
	case ".xlsx":
		text, err = extractExcel(content, e.maxChars)
	case ".txt", ".md":
		text, err = extractPlain(content)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", err
	}
	return e.clip(strings.Join(strings.Fields(text), " ")), nil
}

// Supported reports whether ext (with leading dot, any case) can be extracted.
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range SupportedExtensions {
		if s == ext {
			return true
		}
	}
	return false
}

func (e *Extractor) clip(text string) string {
	if e.maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= e.maxChars {
		return text
	}
	return string(runes[:e.maxChars])
}
