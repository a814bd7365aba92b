package dependency

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/simonhull/apiport/pkg/logger"
	"github.com/simonhull/apiport/pkg/metadata"
	"github.com/simonhull/apiport/pkg/model"
	"github.com/simonhull/apiport/pkg/ordinal"
	"github.com/simonhull/apiport/pkg/progress"
)

// TaskName is the progress task of a FindDependencies call.
const TaskName = "Detecting assembly references"

// ErrFileNotFound reports an input file that does not exist.
var ErrFileNotFound = errors.New("file not found")

// Info is the reconciled-ready output of extraction.
type Info struct {
	// UserAssemblies are the readable inputs, ordered by identity.
	UserAssemblies []model.AssemblyInfo
	Dependencies   model.Dependencies
	// UnresolvedAssemblies maps a referenced assembly missing from the input
	// to the sorted identities of the assemblies that reference it.
	UnresolvedAssemblies map[string][]string
	// AssembliesWithErrors lists the names of inputs that could not be read.
	AssembliesWithErrors []string
	// Diagnostics holds the skipped rows of each user assembly by identity.
	Diagnostics map[string]metadata.Diagnostics
}

// UnresolvedNames returns the unresolved assembly identities in order.
func (i *Info) UnresolvedNames() []string {
	names := make([]string, 0, len(i.UnresolvedAssemblies))
	for name := range i.UnresolvedAssemblies {
		names = append(names, name)
	}
	ordinal.Sort(names)
	return names
}

// Extraction is the result of reading one file.
type Extraction struct {
	Assembly model.AssemblyInfo
	Facts    *metadata.Facts
}

// Finder extracts dependencies from assembly files.
type Finder struct {
	filter  *Filter
	workers int
	logger  logger.Logger
}

// NewFinder creates a Finder. It panics when filter is nil.
func NewFinder(filter *Filter) *Finder {
	if filter == nil {
		panic("dependency: nil filter")
	}
	return &Finder{
		filter: filter,
		logger: logger.Default(),
	}
}

// WithLogger returns a new Finder with the specified logger
func (f *Finder) WithLogger(log logger.Logger) *Finder {
	return &Finder{filter: f.filter, workers: f.workers, logger: log}
}

// WithWorkers returns a new Finder using n workers; n <= 0 means one per CPU.
func (f *Finder) WithWorkers(n int) *Finder {
	return &Finder{filter: f.filter, workers: n, logger: f.logger}
}

// Extract reads one file.
func (f *Finder) Extract(file AssemblyFile) (*Extraction, error) {
	if !file.Exists() {
		return nil, fmt.Errorf("%s: %w", file.Name(), ErrFileNotFound)
	}

	r, err := file.OpenRead()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", file.Name(), err)
	}
	defer r.Close()

	facts, err := metadata.Extract(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file.Name(), err)
	}

	fileVersion := facts.FileVersion
	if fileVersion == "" {
		fileVersion = file.Version()
	}

	info := model.AssemblyInfo{
		AssemblyIdentity:       facts.Identity.String(),
		FileVersion:            fileVersion,
		TargetFrameworkMoniker: facts.TargetFramework,
		Location:               file.Name(),
		IsExplicitlySpecified:  file.Explicit(),
		PackageSubstitutable:   file.PackageSubstitutable(),
	}
	if loc, ok := file.(interface{ Location() string }); ok {
		info.Location = loc.Location()
	}
	return &Extraction{Assembly: info, Facts: facts}, nil
}

type extractJob struct {
	file AssemblyFile
}

type extractResult struct {
	file       AssemblyFile
	extraction *Extraction
	err        error
}

// FindDependencies reads every file with a pool of workers and merges the
// results. Per-file failures are recorded in AssembliesWithErrors and reported
// as progress issues; only cancellation fails the call.
func (f *Finder) FindDependencies(ctx context.Context, files []AssemblyFile, reporter progress.Reporter) (*Info, error) {
	var info *Info
	err := progress.Run(reporter, TaskName, func() error {
		var err error
		info, err = f.find(ctx, files, reporter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (f *Finder) find(ctx context.Context, files []AssemblyFile, reporter progress.Reporter) (*Info, error) {
	f.logger.Info("Starting dependency extraction", logger.F("files", len(files)))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	numWorkers := f.workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	jobs := make(chan extractJob, len(files))
	results := make(chan extractResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go f.extractWorker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for _, file := range files {
			select {
			case <-ctx.Done():
				return
			case jobs <- extractJob{file: file}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var extracted []*Extraction
	var failed []string
	for result := range results {
		if result.err != nil {
			f.logger.Warn("Failed to read assembly",
				logger.F("file", result.file.Name()),
				logger.Err(result.err))
			reporter.ReportIssue(fmt.Sprintf("Could not read %s: %v", result.file.Name(), result.err))
			failed = append(failed, result.file.Name())
			continue
		}
		extracted = append(extracted, result.extraction)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	info := f.merge(extracted)
	info.AssembliesWithErrors = failed
	ordinal.Sort(info.AssembliesWithErrors)

	f.logger.Info("Dependency extraction complete",
		logger.F("assemblies", len(info.UserAssemblies)),
		logger.F("members", len(info.Dependencies)),
		logger.F("unresolved", len(info.UnresolvedAssemblies)),
		logger.F("errors", len(info.AssembliesWithErrors)),
		logger.F("workers", numWorkers))

	return info, nil
}

func (f *Finder) extractWorker(ctx context.Context, jobs <-chan extractJob, results chan<- extractResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		extraction, err := f.Extract(job.file)
		results <- extractResult{file: job.file, extraction: extraction, err: err}
	}
}

// merge builds the dependency graph from the extracted assemblies. It runs on
// one goroutine after all workers are done.
func (f *Finder) merge(extracted []*Extraction) *Info {
	info := &Info{
		UserAssemblies:       make([]model.AssemblyInfo, 0, len(extracted)),
		Dependencies:         make(model.Dependencies),
		UnresolvedAssemblies: make(map[string][]string),
		Diagnostics:          make(map[string]metadata.Diagnostics),
	}

	// Inputs are matched by simple name so that a reference to another
	// version of a user assembly is not reported as unresolved.
	userNames := ordinal.NewSet()
	for _, e := range extracted {
		userNames.Add(e.Facts.Identity.Name)
		info.UserAssemblies = append(info.UserAssemblies, e.Assembly)
	}
	model.SortAssemblies(info.UserAssemblies)

	unresolved := make(map[string]*ordinal.Set)
	var unresolvedOrder []string

	for _, e := range extracted {
		self := e.Assembly.AssemblyIdentity
		if e.Facts.Diagnostics.Len() > 0 {
			// the same identity can be passed twice from different paths
			d := info.Diagnostics[self]
			d.Merge(e.Facts.Diagnostics)
			info.Diagnostics[self] = d
			f.logger.Warn("Skipped malformed metadata rows",
				logger.F("assembly", self),
				logger.F("count", e.Facts.Diagnostics.Len()))
		}

		for i, ref := range e.Facts.AssemblyRefs {
			if ref.Name == "" || f.filter.IsExcluded(ref) || f.filter.IsFrameworkAssembly(ref) {
				continue
			}
			if userNames.Has(ref.Name) || ordinal.Equal(ref.String(), self) {
				continue
			}
			id := ref.String()
			set, ok := unresolved[ordinal.Key(id)]
			if !ok {
				set = ordinal.NewSet()
				unresolved[ordinal.Key(id)] = set
				unresolvedOrder = append(unresolvedOrder, id)
			}
			set.Add(self)
			f.logger.Debug("Unresolved assembly reference",
				logger.F("assembly", self),
				logger.F("reference", id),
				logger.F("row", i+1))
		}

		for _, ref := range e.Facts.References {
			target, ok := e.Facts.ReferencedAssembly(ref)
			if !ok || !f.filter.IsFrameworkAssembly(target) || f.filter.IsExcluded(target) {
				continue
			}
			targetID := target.String()
			if ordinal.Equal(targetID, self) {
				continue
			}
			info.Dependencies.Add(model.MemberInfo{
				MemberDocID:               ref.MemberDocID,
				TypeDocID:                 ref.TypeDocID,
				DefinedInAssemblyIdentity: targetID,
			}, e.Assembly)
		}
	}

	for _, id := range unresolvedOrder {
		info.UnresolvedAssemblies[id] = unresolved[ordinal.Key(id)].Values()
	}
	return info
}

// SortedDiagnostics returns the diagnostics keys in order.
func (i *Info) SortedDiagnostics() []string {
	keys := make([]string, 0, len(i.Diagnostics))
	for k := range i.Diagnostics {
		keys = append(keys, k)
	}
	ordinal.Sort(keys)
	return keys
}
