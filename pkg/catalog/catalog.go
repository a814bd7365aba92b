// Package catalog holds the per-target API support data the analysis engine
// checks references against.
//
// A catalog is a YAML document listing the target families and versions it
// knows, the version each API was introduced in per family, and the known
// breaking changes. It is loaded once and read concurrently afterwards.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"github.com/simonhull/apiport/pkg/model"
	"github.com/simonhull/apiport/pkg/ordinal"
)

// ErrUnknownTarget reports a target name the catalog cannot resolve.
var ErrUnknownTarget = errors.New("unknown target")

// DefaultCacheSize is the number of membership answers kept in memory.
const DefaultCacheSize = 4096

// Framework is a target family with the versions the catalog covers.
type Framework struct {
	Identifier string          `yaml:"identifier"`
	Profile    string          `yaml:"profile,omitempty"`
	Versions   []model.Version `yaml:"versions"`
}

// API is the support record of one documentation id.
type API struct {
	DocID string `yaml:"id"`
	// Supported maps a family identifier to the version that introduced the API.
	Supported          map[string]model.Version `yaml:"supported"`
	RecommendedChanges string                   `yaml:"recommended_changes,omitempty"`
}

// Document is the on-disk catalog layout.
type Document struct {
	LastUpdated     time.Time              `yaml:"last_updated"`
	DefaultTargets  []string               `yaml:"default_targets,omitempty"`
	Frameworks      []Framework            `yaml:"frameworks"`
	APIs            []API                  `yaml:"apis"`
	BreakingChanges []model.BreakingChange `yaml:"breaking_changes,omitempty"`
}

type apiRecord struct {
	supported          map[string]model.Version // folded family -> introduced
	recommendedChanges string
}

// Catalog is an in-memory catalog. It is safe for concurrent use.
type Catalog struct {
	lastUpdated     time.Time
	defaultTargets  []string
	frameworks      []Framework
	apis            map[string]apiRecord // folded doc id
	breakingChanges []model.BreakingChange
	cache           *lru.Cache[string, bool]
}

// Load reads a catalog file.
func Load(path string, cacheSize int) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	return New(doc, cacheSize)
}

// New builds a catalog from a document.
func New(doc Document, cacheSize int) (*Catalog, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, bool](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating catalog cache: %w", err)
	}

	c := &Catalog{
		lastUpdated:     doc.LastUpdated,
		defaultTargets:  doc.DefaultTargets,
		frameworks:      doc.Frameworks,
		apis:            make(map[string]apiRecord, len(doc.APIs)),
		breakingChanges: doc.BreakingChanges,
		cache:           cache,
	}

	for i, fw := range doc.Frameworks {
		if fw.Identifier == "" {
			return nil, fmt.Errorf("catalog framework %d has no identifier", i)
		}
	}

	for _, api := range doc.APIs {
		if api.DocID == "" {
			return nil, errors.New("catalog api entry has no id")
		}
		rec := apiRecord{
			supported:          make(map[string]model.Version, len(api.Supported)),
			recommendedChanges: api.RecommendedChanges,
		}
		for family, v := range api.Supported {
			rec.supported[ordinal.Key(family)] = v
		}
		c.apis[ordinal.Key(api.DocID)] = rec
	}
	return c, nil
}

// LastUpdated returns the catalog timestamp.
func (c *Catalog) LastUpdated(ctx context.Context) (time.Time, error) {
	return c.lastUpdated, ctx.Err()
}

// IsFrameworkMember reports whether the catalog knows the doc id at all.
func (c *Catalog) IsFrameworkMember(ctx context.Context, docID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := c.apis[ordinal.Key(docID)]
	return ok, nil
}

// IsMemberInTarget reports whether member is available on target: the
// target's family must list it with an introducing version at or below the
// target version.
func (c *Catalog) IsMemberInTarget(ctx context.Context, member model.MemberInfo, target model.Target) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	key := ordinal.Key(member.MemberDocID) + "\x00" + target.Key()
	if ok, hit := c.cache.Get(key); hit {
		return ok, nil
	}

	introduced, ok := c.introduced(member.MemberDocID, target)
	ok = ok && target.Version.Compare(introduced) >= 0
	c.cache.Add(key, ok)
	return ok, nil
}

// IntroducedIn returns the version that introduced the member in target's
// family, or "" when the family does not support it.
func (c *Catalog) IntroducedIn(ctx context.Context, docID string, target model.Target) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, ok := c.introduced(docID, target)
	if !ok {
		return "", nil
	}
	return v.String(), nil
}

func (c *Catalog) introduced(docID string, target model.Target) (model.Version, bool) {
	rec, ok := c.apis[ordinal.Key(docID)]
	if !ok {
		return model.Version{}, false
	}
	v, ok := rec.supported[ordinal.Key(target.Identifier)]
	return v, ok
}

// RecommendedChanges returns the porting advice recorded for a doc id.
func (c *Catalog) RecommendedChanges(ctx context.Context, docID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.apis[ordinal.Key(docID)].recommendedChanges, nil
}

// BreakingChangesFor returns the breaking changes whose family and version
// range cover target, in catalog order.
func (c *Catalog) BreakingChangesFor(ctx context.Context, target model.Target) ([]model.BreakingChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []model.BreakingChange
	for _, b := range c.breakingChanges {
		if b.AppliesTo(target) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Frameworks returns the target families.
func (c *Catalog) Frameworks() []Framework {
	return c.frameworks
}

// DefaultTargets returns the target names used when a request names none.
func (c *Catalog) DefaultTargets() []string {
	return c.defaultTargets
}

// Targets returns every explicit target the catalog covers, sorted.
func (c *Catalog) Targets() []model.Target {
	var out []model.Target
	for _, fw := range c.frameworks {
		for _, v := range fw.Versions {
			out = append(out, model.Target{Identifier: fw.Identifier, Version: v, Profile: fw.Profile})
		}
	}
	model.SortTargets(out)
	return out
}
