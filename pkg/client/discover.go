package client

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/simonhull/apiport/pkg/dependency"
	"github.com/simonhull/apiport/pkg/ordinal"
)

// AssemblyExtensions are the file extensions treated as binaries.
var AssemblyExtensions = []string{".dll", ".exe", ".winmd", ".ilexe", ".ildll"}

// Inputs is the result of resolving the user's paths.
type Inputs struct {
	// Files are the binaries to analyze, ordered by path.
	Files []dependency.FileSource
	// Invalid lists paths that do not exist.
	Invalid []string
}

// AssemblyFiles returns Files as the extractor's file interface.
func (in *Inputs) AssemblyFiles() []dependency.AssemblyFile {
	out := make([]dependency.AssemblyFile, len(in.Files))
	for i, f := range in.Files {
		out[i] = f
	}
	return out
}

// DiscoverInputs resolves files and directories. A named file is kept when it
// has a binary extension. A directory is scanned recursively; what it yields
// may be replaced by a package. Paths that do not exist are collected as
// invalid rather than failing the run.
func DiscoverInputs(paths []string) (*Inputs, error) {
	in := &Inputs{}
	seen := ordinal.NewSet()
	invalid := ordinal.NewSet()

	add := func(path string, explicit bool) {
		if !hasAssemblyExtension(path) {
			return
		}
		if abs, err := filepath.Abs(path); err == nil && !seen.Add(abs) {
			return
		}
		in.Files = append(in.Files, dependency.FileSource{
			Path:          path,
			IsExplicit:    explicit,
			Substitutable: !explicit,
		})
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				invalid.Add(path)
				continue
			}
			return nil, err
		}

		if !info.IsDir() {
			add(path, true)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				add(p, false)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sortFiles(in.Files)
	in.Invalid = invalid.Values()
	return in, nil
}

func hasAssemblyExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, valid := range AssemblyExtensions {
		if ordinal.Equal(ext, valid) {
			return true
		}
	}
	return false
}

func sortFiles(files []dependency.FileSource) {
	sort.SliceStable(files, func(i, j int) bool { return ordinal.Less(files[i].Path, files[j].Path) })
}
