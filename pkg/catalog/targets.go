package catalog

import (
	"fmt"
	"strings"

	"github.com/simonhull/apiport/pkg/model"
	"github.com/simonhull/apiport/pkg/ordinal"
)

// TargetNameParser turns requested target names into explicit catalog
// targets.
type TargetNameParser struct {
	frameworks []Framework
	defaults   []string
}

// NewTargetNameParser creates a parser over the catalog's families. defaults
// are used when a request names no target; when empty the catalog defaults
// apply.
func NewTargetNameParser(c *Catalog, defaults []string) *TargetNameParser {
	if c == nil {
		panic("catalog: nil catalog")
	}
	if len(defaults) == 0 {
		defaults = c.DefaultTargets()
	}
	return &TargetNameParser{frameworks: c.Frameworks(), defaults: defaults}
}

// MapTargetsToExplicitVersions parses names and fills in missing versions
// with the latest version of the family. Duplicates are dropped, keeping the
// first occurrence. A family or version the catalog does not cover fails with
// ErrUnknownTarget.
func (p *TargetNameParser) MapTargetsToExplicitVersions(names []string) ([]model.Target, error) {
	if len(names) == 0 {
		names = p.defaults
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no targets requested and no default targets configured", ErrUnknownTarget)
	}

	seen := ordinal.NewSet()
	out := make([]model.Target, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		t, err := p.resolve(name)
		if err != nil {
			return nil, err
		}
		if seen.Add(t.FullName()) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (p *TargetNameParser) resolve(name string) (model.Target, error) {
	parsed, err := model.ParseTarget(name)
	if err != nil {
		return model.Target{}, fmt.Errorf("%w: %v", ErrUnknownTarget, err)
	}

	fw, ok := p.family(parsed)
	if !ok {
		return model.Target{}, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}

	if !parsed.HasVersion() {
		latest, ok := latestVersion(fw.Versions)
		if !ok {
			return model.Target{}, fmt.Errorf("%w: %q has no versions", ErrUnknownTarget, name)
		}
		return model.Target{Identifier: fw.Identifier, Version: latest, Profile: fw.Profile}, nil
	}

	for _, v := range fw.Versions {
		if v.Compare(parsed.Version) == 0 {
			return model.Target{Identifier: fw.Identifier, Version: v, Profile: fw.Profile}, nil
		}
	}
	return model.Target{}, fmt.Errorf("%w: %q is not a version the catalog covers", ErrUnknownTarget, name)
}

func (p *TargetNameParser) family(t model.Target) (Framework, bool) {
	for _, fw := range p.frameworks {
		if ordinal.Equal(fw.Identifier, t.Identifier) && ordinal.Equal(fw.Profile, t.Profile) {
			return fw, true
		}
	}
	return Framework{}, false
}

func latestVersion(versions []model.Version) (model.Version, bool) {
	if len(versions) == 0 {
		return model.Version{}, false
	}
	latest := versions[0]
	for _, v := range versions[1:] {
		if v.Compare(latest) > 0 {
			latest = v
		}
	}
	return latest, true
}
