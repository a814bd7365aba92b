package client

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/simonhull/apiport/pkg/analysis"
	"github.com/simonhull/apiport/pkg/analyzer"
	"github.com/simonhull/apiport/pkg/catalog"
	"github.com/simonhull/apiport/pkg/config"
	"github.com/simonhull/apiport/pkg/dependency"
	"github.com/simonhull/apiport/pkg/logger"
	"github.com/simonhull/apiport/pkg/nuget"
	"github.com/simonhull/apiport/pkg/progress"
	"github.com/simonhull/apiport/pkg/report"
)

// Stack is a fully wired pipeline built from configuration.
type Stack struct {
	Catalog  *catalog.Catalog
	Packages *nuget.Index
	Mapper   *catalog.TargetMapper
	Client   *Client
}

// NewStack loads the catalog, package index and target map named by cfg and
// wires every pipeline component. targetMap overrides cfg.Targets.MapFile
// when set. A missing package index is treated as empty.
func NewStack(cfg *config.Config, targetMap string, log logger.Logger, reporter progress.Reporter) (*Stack, error) {
	cat, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.CacheSize)
	if err != nil {
		return nil, err
	}
	if len(cat.Targets()) == 0 {
		return nil, fmt.Errorf("catalog %s lists no targets", cfg.Catalog.Path)
	}

	packages := nuget.Empty()
	if cfg.Packages.Path != "" {
		packages, err = nuget.Load(cfg.Packages.Path)
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("Package index not found, continuing without package recommendations",
				logger.F("path", cfg.Packages.Path))
			packages, err = nuget.Empty(), nil
		}
		if err != nil {
			return nil, err
		}
	}

	mapper := catalog.NewTargetMapper()
	if targetMap == "" {
		targetMap = cfg.Targets.MapFile
	}
	if targetMap != "" {
		if err := mapper.LoadTargetMap(targetMap); err != nil {
			return nil, err
		}
	}

	engine := analysis.NewEngine(cat, packages).WithLogger(log)
	az := analyzer.NewRequestAnalyzer(analyzer.Config{
		Engine:  engine,
		Mapper:  mapper,
		Parser:  catalog.NewTargetNameParser(cat, cfg.Targets.Default),
		Catalog: cat,
		Reports: report.NewGenerator().WithLogger(log),
	}).WithLogger(log).WithReporter(reporter)

	filter := dependency.NewFilter(cfg.Analysis.FrameworkPublicKeyTokens, cfg.Analysis.ExcludeAssemblies)
	finder := dependency.NewFinder(filter).WithLogger(log).WithWorkers(cfg.Analysis.Workers)

	return &Stack{
		Catalog:  cat,
		Packages: packages,
		Mapper:   mapper,
		Client:   New(finder, az).WithLogger(log).WithReporter(reporter),
	}, nil
}
