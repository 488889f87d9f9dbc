// Package extract turns uploaded document bytes into plain text, one function per format.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/docuflow/internal/errs"
)

// Func extracts plain text from the raw bytes of one document format.
type Func func(content []byte) (string, error)

// Extractor dispatches on file extension.
type Extractor struct {
	funcs map[string]Func
}

// NewExtractor returns an Extractor with the built-in formats registered.
func NewExtractor() *Extractor {
	e := &Extractor{funcs: make(map[string]Func)}
	for _, ext := range []string{".txt", ".md", ".rst", ".csv", ".log", ".json"} {
		e.Register(ext, extractPlain)
	}
	e.Register(".pdf", extractPDF)
	e.Register(".docx", extractDOCX)
	e.Register(".pptx", extractPPTX)
	e.Register(".xlsx", extractXLSX)
	for _, ext := range []string{".odt", ".odp", ".ods"} {
		e.Register(ext, extractODF)
	}
	return e
}

// Register binds fn to ext, replacing any existing binding. ext includes the leading dot.
func (e *Extractor) Register(ext string, fn Func) {
	e.funcs[strings.ToLower(ext)] = fn
}

// Supports reports whether ext has a registered extractor.
func (e *Extractor) Supports(ext string) bool {
	_, ok := e.funcs[strings.ToLower(ext)]
	return ok
}

// Extensions returns the registered extensions, sorted.
func (e *Extractor) Extensions() []string {
	out := make([]string, 0, len(e.funcs))
	for ext := range e.funcs {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract reads the file at path and extracts its text by extension.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content using the extractor registered for ext.
// An unsupported extension or a document without text is a validation error.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := e.funcs[strings.ToLower(ext)]
	if !ok {
		return "", errs.Validation("unsupported document format %q", ext)
	}
	text, err := fn(content)
	if err != nil {
		return "", errs.Validation("extract %s: %v", ext, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errs.Validation("no extractable text in %s document", ext)
	}
	return text, nil
}
