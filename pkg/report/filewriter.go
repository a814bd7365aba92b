package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/simonhull/apiport/pkg/logger"
	"github.com/simonhull/apiport/pkg/model"
)

// DefaultBaseName is the report file name used when none is configured.
const DefaultBaseName = "ApiPortAnalysis"

// FileWriter writes a response to disk in one or more formats.
type FileWriter struct {
	overwrite bool
	logger    logger.Logger
}

// NewFileWriter creates a FileWriter. Without overwrite, an existing report
// is kept and the new one gets a numbered name.
func NewFileWriter(overwrite bool) *FileWriter {
	return &FileWriter{overwrite: overwrite, logger: logger.Default()}
}

// WithLogger returns a new FileWriter with the specified logger
func (fw *FileWriter) WithLogger(log logger.Logger) *FileWriter {
	return &FileWriter{overwrite: fw.overwrite, logger: log}
}

// Write renders resp in every format and writes the files next to base, a
// path without extension. It returns the written paths in format order.
func (fw *FileWriter) Write(resp *model.AnalyzeResponse, base string, formats []string) ([]string, error) {
	if base == "" {
		base = DefaultBaseName
	}
	if ext := filepath.Ext(base); ext != "" {
		if _, err := NewWriter(strings.TrimPrefix(ext, ".")); err == nil {
			base = strings.TrimSuffix(base, ext)
		}
	}

	tx := NewTransaction()
	for _, format := range formats {
		w, err := NewWriter(format)
		if err != nil {
			return nil, err
		}

		var buf bytes.Buffer
		if err := w.Write(&buf, resp); err != nil {
			return nil, fmt.Errorf("rendering %s report: %w", w.Format(), err)
		}

		path := base + w.Extension()
		if !fw.overwrite {
			path = uniquePath(path)
		}
		tx.AddFile(path, buf.Bytes(), 0o644)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	paths := tx.Paths()
	fw.logger.Info("Wrote reports", logger.F("files", strings.Join(paths, ", ")))
	return paths, nil
}

// uniquePath returns path, or "name (n).ext" with the first n not in use.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
