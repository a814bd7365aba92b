package analysis

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/simonhull/apiport/pkg/logger"
	"github.com/simonhull/apiport/pkg/model"
	"github.com/simonhull/apiport/pkg/ordinal"
)

// Catalog is the API support data the engine reads. Implementations may be
// remote; every call can block or fail.
type Catalog interface {
	LastUpdated(ctx context.Context) (time.Time, error)
	// IsFrameworkMember reports whether the catalog tracks the doc id at all.
	IsFrameworkMember(ctx context.Context, docID string) (bool, error)
	IsMemberInTarget(ctx context.Context, member model.MemberInfo, target model.Target) (bool, error)
	// IntroducedIn returns the version that introduced the doc id in the
	// target's family, or "" when unsupported.
	IntroducedIn(ctx context.Context, docID string, target model.Target) (string, error)
	RecommendedChanges(ctx context.Context, docID string) (string, error)
	BreakingChangesFor(ctx context.Context, target model.Target) ([]model.BreakingChange, error)
}

// PackageFinder looks up packages that supply an assembly. Not finding a
// package is not an error.
type PackageFinder interface {
	TryFindPackage(ctx context.Context, assemblyIdentity string, targets []model.Target) (bool, map[model.Target][]model.NuGetPackageID, error)
}

// Engine runs the portability checks.
type Engine struct {
	catalog Catalog
	finder  PackageFinder
	logger  logger.Logger
}

// NewEngine creates an Engine. It panics when a collaborator is nil.
func NewEngine(catalog Catalog, finder PackageFinder) *Engine {
	if catalog == nil {
		panic("analysis: nil catalog")
	}
	if finder == nil {
		panic("analysis: nil package finder")
	}
	return &Engine{catalog: catalog, finder: finder, logger: logger.Default()}
}

// WithLogger returns a new Engine with the specified logger
func (e *Engine) WithLogger(log logger.Logger) *Engine {
	return &Engine{catalog: e.catalog, finder: e.finder, logger: log}
}

// FindMembersNotInTargets returns the referenced members missing from at
// least one target, ordered by type, member and assembly. Only members the
// catalog knows, defined outside the user assemblies and referenced by at
// least one of them are checked.
func (e *Engine) FindMembersNotInTargets(ctx context.Context, targets []model.Target, userAssemblies []string, dependencies model.Dependencies) ([]model.MissingMember, error) {
	users := ordinal.NewSet(userAssemblies...)

	var candidates []model.MemberInfo
	for _, m := range dependencies.Members() {
		if users.Has(m.DefinedInAssemblyIdentity) || !referencedBy(dependencies[m], users) {
			continue
		}
		known, err := e.catalog.IsFrameworkMember(ctx, m.MemberDocID)
		if err != nil {
			return nil, fmt.Errorf("catalog lookup of %s: %w", m.MemberDocID, err)
		}
		if known {
			candidates = append(candidates, m)
		}
	}

	// supported[t][i] and status[t][i] belong to target t and member i; each
	// goroutine writes only its own row.
	supported := make([][]bool, len(targets))
	status := make([][]string, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for ti, target := range targets {
		g.Go(func() error {
			row := make([]bool, len(candidates))
			versions := make([]string, len(candidates))
			for i, m := range candidates {
				ok, err := e.catalog.IsMemberInTarget(gctx, m, target)
				if err != nil {
					return fmt.Errorf("checking %s on %s: %w", m.MemberDocID, target, err)
				}
				row[i] = ok
				if versions[i], err = e.catalog.IntroducedIn(gctx, m.MemberDocID, target); err != nil {
					return fmt.Errorf("checking %s on %s: %w", m.MemberDocID, target, err)
				}
			}
			supported[ti] = row
			status[ti] = versions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	missing := []model.MissingMember{}
	for i, m := range candidates {
		absent := false
		for ti := range targets {
			if !supported[ti][i] {
				absent = true
				break
			}
		}
		if !absent {
			continue
		}

		mm := model.MissingMember{MemberInfo: m, TargetStatus: make([]string, len(targets))}
		for ti := range targets {
			mm.TargetStatus[ti] = status[ti][i]
		}
		advice, err := e.catalog.RecommendedChanges(ctx, m.MemberDocID)
		if err != nil {
			return nil, fmt.Errorf("catalog lookup of %s: %w", m.MemberDocID, err)
		}
		mm.RecommendedChanges = advice
		missing = append(missing, mm)
	}

	e.logger.Debug("Computed non-portable members",
		logger.F("checked", len(candidates)),
		logger.F("missing", len(missing)),
		logger.F("targets", len(targets)))
	return missing, nil
}

func referencedBy(referencers []model.AssemblyInfo, users *ordinal.Set) bool {
	for _, a := range referencers {
		if users.Has(a.AssemblyIdentity) {
			return true
		}
	}
	return false
}

// FindUnreferencedAssemblies returns the unresolved assemblies that no user
// assembly declares, deduplicated and sorted.
func (e *Engine) FindUnreferencedAssemblies(unresolved []string, userAssemblies []model.AssemblyInfo) []string {
	declared := ordinal.NewSet()
	for _, a := range userAssemblies {
		declared.Add(a.AssemblyIdentity)
	}

	out := ordinal.NewSet()
	for _, name := range unresolved {
		if name != "" && !declared.Has(name) {
			out.Add(name)
		}
	}
	return out.Values()
}

// FindBreakingChangeSkippedAssemblies returns the user assemblies the ignore
// list excludes for this run, sorted by identity. An entry matches by full
// identity or simple name; it applies when it lists no targets or lists
// every requested target.
func (e *Engine) FindBreakingChangeSkippedAssemblies(targets []model.Target, userAssemblies []model.AssemblyInfo, ignore []model.IgnoreAssemblyInfo) []model.AssemblyInfo {
	skipped := []model.AssemblyInfo{}
	for _, a := range userAssemblies {
		for _, entry := range ignore {
			if matchesAssembly(entry.AssemblyIdentity, a) && coversTargets(entry.TargetsIgnored, targets) {
				skipped = append(skipped, a)
				break
			}
		}
	}
	model.SortAssemblies(skipped)
	return skipped
}

func matchesAssembly(pattern string, a model.AssemblyInfo) bool {
	return ordinal.Equal(pattern, a.AssemblyIdentity) || ordinal.Equal(pattern, a.Name())
}

func coversTargets(ignored []string, targets []model.Target) bool {
	if len(ignored) == 0 {
		return true
	}
	set := ordinal.NewSet()
	for _, name := range ignored {
		if t, err := model.ParseTarget(name); err == nil {
			set.Add(t.FullName())
		}
	}
	for _, t := range targets {
		if !set.Has(t.FullName()) {
			return false
		}
	}
	return true
}

// FindBreakingChanges reports, per target in order, every use of a member
// named by an applicable breaking change. Suppressed change ids and
// retargeting changes (unless includeRetargeting) are left out, and one
// record is produced per referencing user assembly that is not skipped.
func (e *Engine) FindBreakingChanges(ctx context.Context, targets []model.Target, dependencies model.Dependencies, skipped []model.AssemblyInfo, suppressed []string, userAssemblies []model.AssemblyInfo, includeRetargeting bool) ([]model.BreakingChangeDependency, error) {
	skip := ordinal.NewSet()
	for _, a := range skipped {
		skip.Add(a.AssemblyIdentity)
	}
	users := ordinal.NewSet()
	for _, a := range userAssemblies {
		users.Add(a.AssemblyIdentity)
	}
	suppress := ordinal.NewSet(suppressed...)
	members := dependencies.Members()

	perTarget := make([][]model.BreakingChangeDependency, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for ti, target := range targets {
		g.Go(func() error {
			changes, err := e.catalog.BreakingChangesFor(gctx, target)
			if err != nil {
				return fmt.Errorf("breaking changes for %s: %w", target, err)
			}

			var found []model.BreakingChangeDependency
			for _, b := range changes {
				if suppress.Has(b.ID) || (b.IsRetargeting && !includeRetargeting) {
					continue
				}
				apis := ordinal.NewSet(b.ApplicableAPIs...)
				for _, m := range members {
					if !apis.Has(m.MemberDocID) {
						continue
					}
					referencers := append([]model.AssemblyInfo(nil), dependencies[m]...)
					model.SortAssemblies(referencers)
					for _, a := range referencers {
						if skip.Has(a.AssemblyIdentity) || !users.Has(a.AssemblyIdentity) {
							continue
						}
						found = append(found, model.BreakingChangeDependency{
							Break:             b,
							Member:            m,
							DependantAssembly: a,
							Target:            target,
						})
					}
				}
			}
			perTarget[ti] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := []model.BreakingChangeDependency{}
	for _, found := range perTarget {
		out = append(out, found...)
	}
	e.logger.Debug("Computed breaking changes",
		logger.F("found", len(out)),
		logger.F("skipped_assemblies", len(skipped)),
		logger.F("suppressed", len(suppressed)))
	return out, nil
}

// GetNuGetPackagesInfo returns one record per (assembly, target) pair,
// including pairs without packages, in assembly then target order. Repeated
// assemblies are looked up once.
func (e *Engine) GetNuGetPackagesInfo(ctx context.Context, assemblyIdentities []string, targets []model.Target) ([]model.NuGetPackageInfo, error) {
	seen := ordinal.NewSet()
	out := make([]model.NuGetPackageInfo, 0, len(assemblyIdentities)*len(targets))

	for _, id := range assemblyIdentities {
		if !seen.Add(id) {
			continue
		}
		found, packages, err := e.finder.TryFindPackage(ctx, id, targets)
		if err != nil {
			return nil, fmt.Errorf("package lookup for %s: %w", id, err)
		}
		for _, t := range targets {
			out = append(out, model.NewNuGetPackageInfo(id, t, packages[t]))
		}
		if found {
			e.logger.Debug("Found packages for assembly", logger.F("assembly", id))
		}
	}
	return out, nil
}
