package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/simonhull/apiport/pkg/model"
)

// FakeCatalog is an in-memory catalog that counts calls and can be told to
// fail.
type FakeCatalog struct {
	Updated time.Time
	// Support maps a doc id to family identifier to introducing version.
	Support map[string]map[string]string
	Advice  map[string]string
	Breaks  []model.BreakingChange
	Err     error

	mu    sync.Mutex
	calls int
}

// Calls returns the number of catalog calls made so far.
func (c *FakeCatalog) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *FakeCatalog) call() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.Err
}

func (c *FakeCatalog) LastUpdated(context.Context) (time.Time, error) {
	if err := c.call(); err != nil {
		return time.Time{}, err
	}
	return c.Updated, nil
}

func (c *FakeCatalog) IsFrameworkMember(_ context.Context, docID string) (bool, error) {
	if err := c.call(); err != nil {
		return false, err
	}
	_, ok := c.Support[docID]
	return ok, nil
}

func (c *FakeCatalog) IsMemberInTarget(_ context.Context, member model.MemberInfo, target model.Target) (bool, error) {
	if err := c.call(); err != nil {
		return false, err
	}
	v, ok := c.Support[member.MemberDocID][target.Identifier]
	return ok && target.Version.Compare(model.MustParseVersion(v)) >= 0, nil
}

func (c *FakeCatalog) IntroducedIn(_ context.Context, docID string, target model.Target) (string, error) {
	if err := c.call(); err != nil {
		return "", err
	}
	return c.Support[docID][target.Identifier], nil
}

func (c *FakeCatalog) RecommendedChanges(_ context.Context, docID string) (string, error) {
	if err := c.call(); err != nil {
		return "", err
	}
	return c.Advice[docID], nil
}

func (c *FakeCatalog) BreakingChangesFor(_ context.Context, target model.Target) ([]model.BreakingChange, error) {
	if err := c.call(); err != nil {
		return nil, err
	}
	var out []model.BreakingChange
	for _, b := range c.Breaks {
		if b.AppliesTo(target) {
			out = append(out, b)
		}
	}
	return out, nil
}

// FakePackageFinder answers package lookups from a table keyed by assembly
// simple name and target full name.
type FakePackageFinder struct {
	Packages map[string]map[string][]model.NuGetPackageID
	Err      error

	mu      sync.Mutex
	calls   int
	queried []string
}

// Calls returns the number of lookups made so far.
func (f *FakePackageFinder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Queried returns the assembly identities looked up, in call order.
func (f *FakePackageFinder) Queried() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queried...)
}

func (f *FakePackageFinder) TryFindPackage(_ context.Context, assemblyIdentity string, targets []model.Target) (bool, map[model.Target][]model.NuGetPackageID, error) {
	f.mu.Lock()
	f.calls++
	f.queried = append(f.queried, assemblyIdentity)
	f.mu.Unlock()

	if f.Err != nil {
		return false, nil, f.Err
	}

	byTarget := f.Packages[model.ParseAssemblyName(assemblyIdentity).Name]
	out := make(map[model.Target][]model.NuGetPackageID, len(targets))
	found := false
	for _, t := range targets {
		if packages := byTarget[t.FullName()]; len(packages) > 0 {
			out[t] = packages
			found = true
		}
	}
	return found, out, nil
}
