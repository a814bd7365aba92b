package client

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/simonhull/apiport/pkg/dependency"
	"github.com/simonhull/apiport/pkg/logger"
	"github.com/simonhull/apiport/pkg/model"
	"github.com/simonhull/apiport/pkg/progress"
	"github.com/simonhull/apiport/pkg/report"
)

// DependencyFinder extracts dependencies from input files.
type DependencyFinder interface {
	FindDependencies(ctx context.Context, files []dependency.AssemblyFile, reporter progress.Reporter) (*dependency.Info, error)
}

// RequestAnalyzer analyzes a built request.
type RequestAnalyzer interface {
	AnalyzeRequest(ctx context.Context, req *model.AnalyzeRequest, submissionID string) (*model.AnalyzeResponse, error)
}

// Options describe one analysis run.
type Options struct {
	ApplicationName string
	Description     string
	// Inputs are files or directories.
	Inputs  []string
	Targets []string
	Flags   model.RequestFlags

	// IgnoreFile is a YAML list of assemblies to skip for breaking changes.
	IgnoreFile              string
	SuppressBreakingChanges []string

	// MaxRequestBytes bounds the total input size; zero disables the check.
	MaxRequestBytes int64

	// Formats selects the report writers; none means no files are written.
	Formats    []string
	OutputFile string
	Overwrite  bool

	// DumpRequest, when set, receives a dump of the built request.
	DumpRequest io.Writer
}

// Result is the outcome of a run.
type Result struct {
	Response     *model.AnalyzeResponse
	ReportPaths  []string
	InvalidFiles []string
	Info         *dependency.Info
}

// Client wires extraction, analysis and report writing.
type Client struct {
	finder   DependencyFinder
	analyzer RequestAnalyzer
	reporter progress.Reporter
	logger   logger.Logger
	newID    func() string
}

// New creates a Client. It panics when a collaborator is nil.
func New(finder DependencyFinder, analyzer RequestAnalyzer) *Client {
	if finder == nil {
		panic("client: nil dependency finder")
	}
	if analyzer == nil {
		panic("client: nil request analyzer")
	}
	return &Client{
		finder:   finder,
		analyzer: analyzer,
		reporter: &progress.Nop{},
		logger:   logger.Default(),
		newID:    func() string { return ulid.Make().String() },
	}
}

func (c *Client) clone() *Client {
	cp := *c
	return &cp
}

// WithLogger returns a new Client with the specified logger
func (c *Client) WithLogger(log logger.Logger) *Client {
	cp := c.clone()
	cp.logger = log
	return cp
}

// WithReporter returns a new Client reporting progress to r.
func (c *Client) WithReporter(r progress.Reporter) *Client {
	cp := c.clone()
	cp.reporter = r
	return cp
}

// Analyze runs the whole pipeline for opts.
func (c *Client) Analyze(ctx context.Context, opts Options) (*Result, error) {
	inputs, err := DiscoverInputs(opts.Inputs)
	if err != nil {
		return nil, fmt.Errorf("discovering inputs: %w", err)
	}
	for _, path := range inputs.Invalid {
		c.logger.Warn("Input path does not exist", logger.F("path", path))
	}
	if len(inputs.Files) == 0 {
		return nil, fmt.Errorf("%w (invalid paths: %d)", ErrNoInputs, len(inputs.Invalid))
	}

	if err := Admit(inputs.Files, opts.MaxRequestBytes); err != nil {
		return nil, err
	}

	ignore, err := LoadIgnoreFile(opts.IgnoreFile)
	if err != nil {
		return nil, err
	}

	info, err := c.finder.FindDependencies(ctx, inputs.AssemblyFiles(), c.reporter)
	if err != nil {
		return nil, fmt.Errorf("finding dependencies: %w", err)
	}

	req := BuildRequest(opts, info, ignore)
	if opts.DumpRequest != nil {
		fmt.Fprint(opts.DumpRequest, spew.Sdump(req))
	}

	submissionID := c.newID()
	c.logger.Info("Submitting analysis request",
		logger.F("submission", submissionID),
		logger.F("assemblies", len(req.UserAssemblies)),
		logger.F("unresolved", len(req.UnresolvedAssembliesDictionary)),
		logger.F("errors", len(req.AssembliesWithErrors)))

	resp, err := c.analyzer.AnalyzeRequest(ctx, req, submissionID)
	if err != nil {
		return nil, err
	}

	result := &Result{Response: resp, InvalidFiles: inputs.Invalid, Info: info}
	if len(opts.Formats) > 0 {
		fw := report.NewFileWriter(opts.Overwrite).WithLogger(c.logger)
		if result.ReportPaths, err = fw.Write(resp, opts.OutputFile, opts.Formats); err != nil {
			return nil, fmt.Errorf("writing reports: %w", err)
		}
	}
	return result, nil
}

// Admit rejects files whose total size exceeds limit. A non-positive limit
// admits everything. Files that cannot be measured count as empty; extraction
// reports them as assemblies with errors.
func Admit(files []dependency.FileSource, limit int64) error {
	if limit <= 0 {
		return nil
	}
	var total int64
	for _, f := range files {
		size, err := f.Size()
		if err != nil {
			continue
		}
		total += size
	}
	if total > limit {
		return &RequestTooLargeError{Size: total, Limit: limit}
	}
	return nil
}

// BuildRequest assembles the AnalyzeRequest from extraction results.
func BuildRequest(opts Options, info *dependency.Info, ignore []model.IgnoreAssemblyInfo) *model.AnalyzeRequest {
	return &model.AnalyzeRequest{
		ApplicationName:                opts.ApplicationName,
		Description:                    opts.Description,
		Targets:                        opts.Targets,
		UserAssemblies:                 info.UserAssemblies,
		Dependencies:                   info.Dependencies,
		UnresolvedAssemblies:           info.UnresolvedNames(),
		UnresolvedAssembliesDictionary: info.UnresolvedAssemblies,
		AssembliesWithErrors:           info.AssembliesWithErrors,
		AssembliesToIgnore:             ignore,
		BreakingChangesToSuppress:      opts.SuppressBreakingChanges,
		RequestFlags:                   model.NewRequestFlags(opts.Flags),
	}
}

type ignoreFile struct {
	Ignore []model.IgnoreAssemblyInfo `yaml:"ignore"`
}

// LoadIgnoreFile reads the assemblies to skip for breaking changes. An empty
// path yields no entries.
func LoadIgnoreFile(path string) ([]model.IgnoreAssemblyInfo, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	var f ignoreFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing ignore file %s: %w", path, err)
	}
	return f.Ignore, nil
}
