package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/simonhull/apiport/pkg/analysis"
	"github.com/simonhull/apiport/pkg/logger"
	"github.com/simonhull/apiport/pkg/model"
	"github.com/simonhull/apiport/pkg/ordinal"
	"github.com/simonhull/apiport/pkg/progress"
)

// TaskName is the progress task the analyzer runs under.
const TaskName = "Analyzing request"

// Engine is the portability engine the analyzer drives.
type Engine interface {
	FindMembersNotInTargets(ctx context.Context, targets []model.Target, userAssemblies []string, dependencies model.Dependencies) ([]model.MissingMember, error)
	FindUnreferencedAssemblies(unresolved []string, userAssemblies []model.AssemblyInfo) []string
	FindBreakingChangeSkippedAssemblies(targets []model.Target, userAssemblies []model.AssemblyInfo, ignore []model.IgnoreAssemblyInfo) []model.AssemblyInfo
	FindBreakingChanges(ctx context.Context, targets []model.Target, dependencies model.Dependencies, skipped []model.AssemblyInfo, suppressed []string, userAssemblies []model.AssemblyInfo, includeRetargeting bool) ([]model.BreakingChangeDependency, error)
	GetNuGetPackagesInfo(ctx context.Context, assemblyIdentities []string, targets []model.Target) ([]model.NuGetPackageInfo, error)
}

// TargetMapper expands target aliases.
type TargetMapper interface {
	ResolveAliases(name string) []string
}

// TargetNameParser turns target names into targets with explicit versions.
type TargetNameParser interface {
	MapTargetsToExplicitVersions(names []string) ([]model.Target, error)
}

// CatalogInfo reports when the catalog data was last refreshed.
type CatalogInfo interface {
	LastUpdated(ctx context.Context) (time.Time, error)
}

// ReportGenerator builds the reporting view of an analysis.
type ReportGenerator interface {
	ComputeReport(ctx context.Context, in model.ReportInput) (*model.ReportingResult, error)
}

// Config wires a RequestAnalyzer's collaborators.
type Config struct {
	Engine  Engine
	Mapper  TargetMapper
	Parser  TargetNameParser
	Catalog CatalogInfo
	Reports ReportGenerator
}

// RequestAnalyzer runs the analysis stages for one request at a time.
type RequestAnalyzer struct {
	cfg      Config
	logger   logger.Logger
	reporter progress.Reporter
	observer func(State)
}

// NewRequestAnalyzer creates a RequestAnalyzer. It panics when a
// collaborator is missing.
func NewRequestAnalyzer(cfg Config) *RequestAnalyzer {
	switch {
	case cfg.Engine == nil:
		panic("analyzer: nil engine")
	case cfg.Mapper == nil:
		panic("analyzer: nil target mapper")
	case cfg.Parser == nil:
		panic("analyzer: nil target name parser")
	case cfg.Catalog == nil:
		panic("analyzer: nil catalog")
	case cfg.Reports == nil:
		panic("analyzer: nil report generator")
	}
	return &RequestAnalyzer{cfg: cfg, logger: logger.Default(), reporter: &progress.Nop{}}
}

func (a *RequestAnalyzer) clone() *RequestAnalyzer {
	c := *a
	return &c
}

// WithLogger returns a new RequestAnalyzer with the specified logger
func (a *RequestAnalyzer) WithLogger(log logger.Logger) *RequestAnalyzer {
	c := a.clone()
	c.logger = log
	return c
}

// WithReporter returns a new RequestAnalyzer reporting progress to r.
func (a *RequestAnalyzer) WithReporter(r progress.Reporter) *RequestAnalyzer {
	c := a.clone()
	c.reporter = r
	return c
}

// WithObserver returns a new RequestAnalyzer that calls fn on every state
// reached.
func (a *RequestAnalyzer) WithObserver(fn func(State)) *RequestAnalyzer {
	c := a.clone()
	c.observer = fn
	return c
}

// run holds the intermediate artifacts of one request.
type run struct {
	state State

	flags          model.RequestFlags
	targets        []model.Target
	userPackages   []model.NuGetPackageInfo
	remove         []string
	keptUsers      []model.AssemblyInfo
	dependencies   model.Dependencies
	nonPortable    []model.MissingMember
	missing        []string
	skipped        []model.AssemblyInfo
	breaking       []model.BreakingChangeDependency
	allPackages    []model.NuGetPackageInfo
	catalogUpdated time.Time
}

// AnalyzeRequest runs every stage for req. A collaborator failure stops the
// run and aborts the progress task; there is no partial response.
func (a *RequestAnalyzer) AnalyzeRequest(ctx context.Context, req *model.AnalyzeRequest, submissionID string) (*model.AnalyzeResponse, error) {
	if req == nil {
		return nil, errors.New("analyzing request: nil request")
	}

	var resp *model.AnalyzeResponse
	err := progress.Run(a.reporter, TaskName, func() error {
		var err error
		resp, err = a.analyze(ctx, req, submissionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *RequestAnalyzer) analyze(ctx context.Context, req *model.AnalyzeRequest, submissionID string) (*model.AnalyzeResponse, error) {
	r := &run{flags: req.RequestFlags.Resolve()}
	a.logger.Info("Analyzing request",
		logger.F("application", req.ApplicationName),
		logger.F("submission", submissionID),
		logger.F("assemblies", len(req.UserAssemblies)),
		logger.F("flags", r.flags.String()))

	// TargetsResolved
	targets, err := a.resolveTargets(req.Targets)
	if err != nil {
		return nil, err
	}
	r.targets = targets
	a.advance(r, StateTargetsResolved)

	// PackagesForUserAssembliesComputed
	userIDs := make([]string, 0, len(req.UserAssemblies))
	for _, u := range req.UserAssemblies {
		if u.AssemblyIdentity != "" {
			userIDs = append(userIDs, u.AssemblyIdentity)
		}
	}
	if r.userPackages, err = a.cfg.Engine.GetNuGetPackagesInfo(ctx, userIDs, r.targets); err != nil {
		return nil, fmt.Errorf("looking up packages for user assemblies: %w", err)
	}
	a.advance(r, StatePackagesForUserAssembliesComputed)

	// AssembliesToRemoveComputed
	r.remove = analysis.ComputeAssembliesToRemove(req.UserAssemblies, r.targets, r.userPackages)
	removed := ordinal.NewSet(r.remove...)
	r.keptUsers = make([]model.AssemblyInfo, 0, len(req.UserAssemblies))
	for _, u := range req.UserAssemblies {
		if u.AssemblyIdentity != "" && !removed.Has(u.AssemblyIdentity) {
			r.keptUsers = append(r.keptUsers, u)
		}
	}
	a.advance(r, StateAssembliesToRemoveComputed)

	// DependenciesFiltered
	r.dependencies = analysis.FilterDependencies(req.Dependencies, r.remove)
	a.advance(r, StateDependenciesFiltered)

	// NonPortableComputed
	r.nonPortable = []model.MissingMember{}
	if r.flags.Has(model.ShowNonPortableApis) {
		kept := make([]string, len(r.keptUsers))
		for i, u := range r.keptUsers {
			kept[i] = u.AssemblyIdentity
		}
		if r.nonPortable, err = a.cfg.Engine.FindMembersNotInTargets(ctx, r.targets, kept, r.dependencies); err != nil {
			return nil, fmt.Errorf("finding non-portable members: %w", err)
		}
	}
	a.advance(r, StateNonPortableComputed)

	// UnresolvedComputed
	r.missing = a.cfg.Engine.FindUnreferencedAssemblies(req.UnresolvedAssemblyNames(), req.UserAssemblies)
	a.advance(r, StateUnresolvedComputed)

	// BreakingChangesComputed
	r.skipped = []model.AssemblyInfo{}
	r.breaking = []model.BreakingChangeDependency{}
	if r.flags.Has(model.ShowBreakingChanges) {
		r.skipped = a.cfg.Engine.FindBreakingChangeSkippedAssemblies(r.targets, req.UserAssemblies, req.AssembliesToIgnore)
		r.breaking, err = a.cfg.Engine.FindBreakingChanges(ctx, r.targets, req.Dependencies, r.skipped,
			req.BreakingChangesToSuppress, r.keptUsers, r.flags.Has(model.ShowRetargettingIssues))
		if err != nil {
			return nil, fmt.Errorf("finding breaking changes: %w", err)
		}
	}
	a.advance(r, StateBreakingChangesComputed)

	// PackagesForMissingComputed
	missingPackages, err := a.cfg.Engine.GetNuGetPackagesInfo(ctx, r.missing, r.targets)
	if err != nil {
		return nil, fmt.Errorf("looking up packages for missing assemblies: %w", err)
	}
	r.allPackages = model.UnionNuGetPackageInfos(r.userPackages, missingPackages)
	a.advance(r, StatePackagesForMissingComputed)

	// ReportAssembled
	if r.catalogUpdated, err = a.cfg.Catalog.LastUpdated(ctx); err != nil {
		return nil, fmt.Errorf("reading catalog timestamp: %w", err)
	}
	result, err := a.cfg.Reports.ComputeReport(ctx, model.ReportInput{
		Targets:              r.targets,
		SubmissionID:         submissionID,
		RequestFlags:         r.flags,
		UserAssemblies:       r.keptUsers,
		Dependencies:         r.dependencies,
		MissingDependencies:  r.nonPortable,
		UnresolvedAssemblies: req.UnresolvedAssembliesDictionary,
		MissingAssemblies:    r.missing,
		AssembliesWithErrors: req.AssembliesWithErrors,
		NuGetPackages:        r.allPackages,
	})
	if err != nil {
		return nil, fmt.Errorf("computing report: %w", err)
	}

	resp := &model.AnalyzeResponse{
		ApplicationName:                 req.ApplicationName,
		SubmissionID:                    submissionID,
		CatalogLastUpdated:              r.catalogUpdated,
		Targets:                         r.targets,
		MissingDependencies:             r.nonPortable,
		UnresolvedUserAssemblies:        r.missing,
		BreakingChanges:                 r.breaking,
		BreakingChangeSkippedAssemblies: r.skipped,
		NuGetPackages:                   r.allPackages,
		ReportingResult:                 result,
	}
	a.advance(r, StateReportAssembled)

	a.logger.Info("Analysis complete",
		logger.F("submission", submissionID),
		logger.F("targets", len(r.targets)),
		logger.F("missing_members", len(r.nonPortable)),
		logger.F("breaking_changes", len(r.breaking)),
		logger.F("removed_assemblies", len(r.remove)))
	return resp, nil
}

// resolveTargets expands aliases, pins versions and orders the result by
// full name.
func (a *RequestAnalyzer) resolveTargets(requested []string) ([]model.Target, error) {
	var names []string
	for _, name := range requested {
		names = append(names, a.cfg.Mapper.ResolveAliases(name)...)
	}
	targets, err := a.cfg.Parser.MapTargetsToExplicitVersions(names)
	if err != nil {
		return nil, fmt.Errorf("resolving targets: %w", err)
	}
	model.SortTargets(targets)
	return targets, nil
}

func (a *RequestAnalyzer) advance(r *run, next State) {
	a.logger.Debug("Analyzer state changed",
		logger.F("from", r.state.String()),
		logger.F("to", next.String()))
	r.state = next
	if a.observer != nil {
		a.observer(next)
	}
}
