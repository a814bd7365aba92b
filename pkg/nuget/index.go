// Package nuget answers which published packages can supply an assembly on a
// given target.
package nuget

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/simonhull/apiport/pkg/model"
	"github.com/simonhull/apiport/pkg/ordinal"
)

// Package is one entry of the package index.
type Package struct {
	ID      string `yaml:"id"`
	Version string `yaml:"version"`
	URL     string `yaml:"url,omitempty"`
	// Assemblies are the simple names of the assemblies the package ships.
	Assemblies []string `yaml:"assemblies"`
	// Targets are full target names or bare family identifiers; a family
	// covers every version of that family.
	Targets []string `yaml:"targets"`
}

type indexFile struct {
	Packages []Package `yaml:"packages"`
}

type entry struct {
	id      model.NuGetPackageID
	targets []model.Target
}

// Index is a read-only package index. It is safe for concurrent use.
type Index struct {
	byAssembly map[string][]entry // folded simple name
}

// Load reads a package index file.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading package index: %w", err)
	}

	var file indexFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing package index %s: %w", path, err)
	}
	return New(file.Packages)
}

// New builds an index from package entries.
func New(packages []Package) (*Index, error) {
	idx := &Index{byAssembly: make(map[string][]entry)}
	for _, p := range packages {
		if p.ID == "" {
			return nil, fmt.Errorf("package entry without id")
		}
		e := entry{id: model.NuGetPackageID{PackageID: p.ID, Version: p.Version, URL: p.URL}}
		for _, name := range p.Targets {
			t, err := model.ParseTarget(name)
			if err != nil {
				return nil, fmt.Errorf("package %s: %w", p.ID, err)
			}
			e.targets = append(e.targets, t)
		}
		for _, asm := range p.Assemblies {
			key := ordinal.Key(asm)
			idx.byAssembly[key] = append(idx.byAssembly[key], e)
		}
	}
	return idx, nil
}

// Empty returns an index without packages.
func Empty() *Index {
	return &Index{byAssembly: make(map[string][]entry)}
}

// TryFindPackage looks up the packages that ship assemblyIdentity for each
// target. found is true when any target has at least one package; targets
// without packages map to an empty list.
func (i *Index) TryFindPackage(ctx context.Context, assemblyIdentity string, targets []model.Target) (bool, map[model.Target][]model.NuGetPackageID, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}

	entries := i.byAssembly[ordinal.Key(model.ParseAssemblyName(assemblyIdentity).Name)]
	result := make(map[model.Target][]model.NuGetPackageID, len(targets))
	found := false
	for _, t := range targets {
		packages := []model.NuGetPackageID{}
		for _, e := range entries {
			if supports(e.targets, t) {
				packages = append(packages, e.id)
			}
		}
		result[t] = packages
		found = found || len(packages) > 0
	}
	return found, result, nil
}

func supports(supported []model.Target, t model.Target) bool {
	for _, s := range supported {
		if !s.SameFamily(t) {
			continue
		}
		if !s.HasVersion() || s.Version.Compare(t.Version) == 0 {
			return true
		}
	}
	return false
}
