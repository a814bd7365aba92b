package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCommitted is returned when a Transaction is committed twice.
var ErrCommitted = errors.New("transaction already committed")

// Transaction stages report files and writes them all or none.
type Transaction struct {
	files     []stagedFile
	committed bool
}

type stagedFile struct {
	path    string
	content []byte
	mode    os.FileMode
}

// NewTransaction creates an empty transaction.
func NewTransaction() *Transaction {
	return &Transaction{}
}

// AddFile stages a write; nothing touches the disk until Commit.
func (t *Transaction) AddFile(path string, content []byte, mode os.FileMode) {
	t.files = append(t.files, stagedFile{path: path, content: content, mode: mode})
}

// Paths returns the staged paths in order.
func (t *Transaction) Paths() []string {
	out := make([]string, len(t.files))
	for i, f := range t.files {
		out[i] = f.path
	}
	return out
}

// Commit writes every staged file through a temporary file in the target
// directory and renames it into place. On failure the files already placed
// are removed.
func (t *Transaction) Commit() error {
	if t.committed {
		return ErrCommitted
	}

	placed := make([]string, 0, len(t.files))
	for _, f := range t.files {
		if err := place(f); err != nil {
			rollback(placed)
			return err
		}
		placed = append(placed, f.path)
	}

	t.committed = true
	return nil
}

func place(f stagedFile) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", f.path, err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(f.content)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, f.mode)
	}
	if err == nil {
		err = os.Rename(tmpName, f.path)
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	return nil
}

func rollback(paths []string) {
	for _, p := range paths {
		os.Remove(p) // best effort
	}
}
