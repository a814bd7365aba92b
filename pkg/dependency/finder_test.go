package dependency

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/apiport/internal/testing/testutil"
	"github.com/simonhull/apiport/pkg/logger"
	"github.com/simonhull/apiport/pkg/metadata"
	"github.com/simonhull/apiport/pkg/model"
	"github.com/simonhull/apiport/pkg/progress"
)

var frameworkToken = []byte{0xb7, 0x7a, 0x5c, 0x56, 0x19, 0x34, 0xe0, 0x89}

const (
	appID        = "App, Version=1.0.0.0, Culture=neutral, PublicKeyToken=null"
	libID        = "Lib, Version=1.0.0.0, Culture=neutral, PublicKeyToken=null"
	thirdPartyID = "ThirdParty, Version=2.0.0.0, Culture=neutral, PublicKeyToken=null"
	mscorlibID   = "mscorlib, Version=4.0.0.0, Culture=neutral, PublicKeyToken=b77a5c561934e089"
)

type memReader struct{ *bytes.Reader }

func (memReader) Close() error { return nil }

type memFile struct {
	name          string
	data          []byte
	missing       bool
	explicit      bool
	substitutable bool
}

func (f memFile) Name() string { return f.name }
func (f memFile) Exists() bool { return !f.missing }
func (f memFile) Version() string { return "9.9.9.9" }
func (f memFile) OpenRead() (ReadAtCloser, error) { return memReader{bytes.NewReader(f.data)}, nil }
func (f memFile) PackageSubstitutable() bool { return f.substitutable }
func (f memFile) Explicit() bool { return f.explicit }

func appAssembly() *testutil.AssemblyBuilder {
	b := testutil.NewAssembly("App")
	mscorlib := b.AssemblyRef("mscorlib", [4]uint16{4, 0, 0, 0}, frameworkToken)
	lib := b.AssemblyRef("Lib", [4]uint16{1, 0, 0, 0}, nil)
	third := b.AssemblyRef("ThirdParty", [4]uint16{2, 0, 0, 0}, nil)
	denied := b.AssemblyRef("Denied", [4]uint16{1, 0, 0, 0}, nil)

	console := b.TypeRef(mscorlib, "System", "Console")
	b.MemberRef(console, "WriteLine", testutil.MethodSig(false, testutil.Void, testutil.String))
	widget := b.TypeRef(lib, "Lib", "Widget")
	b.MemberRef(widget, ".ctor", testutil.MethodSig(true, testutil.Void))
	b.TypeRef(third, "ThirdParty", "Client")
	b.TypeRef(denied, "Denied", "Thing")
	return b
}

func libAssembly() *testutil.AssemblyBuilder {
	b := testutil.NewAssembly("Lib")
	mscorlib := b.AssemblyRef("mscorlib", [4]uint16{4, 0, 0, 0}, frameworkToken)
	b.AssemblyRef("ThirdParty", [4]uint16{2, 0, 0, 0}, nil)
	console := b.TypeRef(mscorlib, "System", "Console")
	b.MemberRef(console, "WriteLine", testutil.MethodSig(false, testutil.Void, testutil.String))
	return b
}

func newTestFinder() *Finder {
	return NewFinder(NewFilter(nil, []string{"Denied"})).
		WithLogger(logger.NewSilentLogger()).
		WithWorkers(2)
}

func TestFindDependencies(t *testing.T) {
	files := []AssemblyFile{
		memFile{name: "App.dll", data: appAssembly().Bytes(), explicit: true},
		memFile{name: "lib/Lib.dll", data: libAssembly().Bytes(), substitutable: true},
		memFile{name: "broken.dll", data: []byte("not an assembly")},
		memFile{name: "gone.dll", missing: true},
	}
	rec := &progress.Recorder{}

	info, err := newTestFinder().FindDependencies(context.Background(), files, rec)
	require.NoError(t, err)

	require.Len(t, info.UserAssemblies, 2)
	app, lib := info.UserAssemblies[0], info.UserAssemblies[1]
	assert.Equal(t, appID, app.AssemblyIdentity)
	assert.True(t, app.IsExplicitlySpecified)
	assert.False(t, app.PackageSubstitutable)
	assert.Equal(t, "9.9.9.9", app.FileVersion)
	assert.Equal(t, libID, lib.AssemblyIdentity)
	assert.True(t, lib.PackageSubstitutable)

	writeLine := model.MemberInfo{
		MemberDocID:               "M:System.Console.WriteLine(System.String)",
		TypeDocID:                 "T:System.Console",
		DefinedInAssemblyIdentity: mscorlibID,
	}
	console := model.MemberInfo{
		MemberDocID:               "T:System.Console",
		TypeDocID:                 "T:System.Console",
		DefinedInAssemblyIdentity: mscorlibID,
	}
	assert.ElementsMatch(t, []model.MemberInfo{console, writeLine}, info.Dependencies.Members(), spew.Sdump(info.Dependencies))
	assert.ElementsMatch(t, []string{appID, libID}, identities(info.Dependencies[writeLine]))

	assert.Equal(t, map[string][]string{thirdPartyID: {appID, libID}}, info.UnresolvedAssemblies)
	assert.Equal(t, []string{thirdPartyID}, info.UnresolvedNames())
	assert.Equal(t, []string{"broken.dll", "gone.dll"}, info.AssembliesWithErrors)
	assert.Empty(t, info.Diagnostics)

	assert.Len(t, rec.Issues(), 2)
	assert.Equal(t, []progress.Event{
		{Task: TaskName, Kind: "start"},
		{Task: TaskName, Kind: "end"},
	}, rec.Events())
}

func TestFindDependencies_CancelledAbortsTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &progress.Recorder{}

	_, err := newTestFinder().FindDependencies(ctx, []AssemblyFile{
		memFile{name: "App.dll", data: appAssembly().Bytes()},
	}, rec)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []progress.Event{
		{Task: TaskName, Kind: "start"},
		{Task: TaskName, Kind: "abort"},
	}, rec.Events())
}

func TestFindDependencies_Empty(t *testing.T) {
	info, err := newTestFinder().FindDependencies(context.Background(), nil, &progress.Nop{})
	require.NoError(t, err)
	assert.Empty(t, info.UserAssemblies)
	assert.Empty(t, info.Dependencies)
	assert.Empty(t, info.UnresolvedAssemblies)
}

func TestFindDependencies_MalformedRowsAreKept(t *testing.T) {
	b := testutil.NewAssembly("App")
	mscorlib := b.AssemblyRef("mscorlib", [4]uint16{4, 0, 0, 0}, frameworkToken)
	console := b.TypeRef(mscorlib, "System", "Console")
	b.MemberRef(console, "Bad", []byte{0x00, 0x01, 0x01, 0x99})

	info, err := newTestFinder().FindDependencies(context.Background(), []AssemblyFile{
		memFile{name: "App.dll", data: b.Bytes()},
	}, &progress.Nop{})
	require.NoError(t, err)

	require.Contains(t, info.Diagnostics, appID)
	assert.Equal(t, metadata.CodeBadSignature, info.Diagnostics[appID].Items[0].Code)
	assert.Equal(t, []string{appID}, info.SortedDiagnostics())
	assert.Len(t, info.Dependencies, 1)
}

func TestExtract_FileSource(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteAssembly(t, dir, "App.dll", appAssembly())

	src := FileSource{Path: path, IsExplicit: true}
	require.True(t, src.Exists())
	size, err := src.Size()
	require.NoError(t, err)
	assert.Positive(t, size)

	e, err := newTestFinder().Extract(src)
	require.NoError(t, err)
	assert.Equal(t, appID, e.Assembly.AssemblyIdentity)
	assert.Equal(t, src.Location(), e.Assembly.Location)
	assert.Len(t, e.Facts.AssemblyRefs, 4)

	_, err = newTestFinder().Extract(FileSource{Path: filepath.Join(dir, "missing.dll")})
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestFilter(t *testing.T) {
	f := NewFilter(nil, []string{"Denied"})

	assert.True(t, f.IsFrameworkAssembly(model.AssemblyName{Name: "mscorlib", PublicKeyToken: "B77A5C561934E089"}))
	assert.False(t, f.IsFrameworkAssembly(model.AssemblyName{Name: "mscorlib"}))
	assert.False(t, f.IsFrameworkAssembly(model.AssemblyName{Name: "Lib", PublicKeyToken: "0123456789abcdef"}))
	assert.True(t, f.IsExcluded(model.AssemblyName{Name: "denied"}))
	assert.False(t, f.IsExcluded(model.AssemblyName{Name: "Lib"}))

	custom := NewFilter([]string{"0123456789abcdef"}, nil)
	assert.True(t, custom.IsFrameworkAssembly(model.AssemblyName{Name: "Lib", PublicKeyToken: "0123456789abcdef"}))
	assert.False(t, custom.IsFrameworkAssembly(model.AssemblyName{Name: "mscorlib", PublicKeyToken: "b77a5c561934e089"}))
}

func TestNewFinder_NilFilterPanics(t *testing.T) {
	assert.Panics(t, func() { NewFinder(nil) })
}

func identities(assemblies []model.AssemblyInfo) []string {
	out := make([]string, len(assemblies))
	for i, a := range assemblies {
		out[i] = a.AssemblyIdentity
	}
	return out
}
