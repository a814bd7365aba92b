package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/apiport/internal/testing/testutil"
	"github.com/simonhull/apiport/pkg/model"
)

var errCatalogDown = errors.New("catalog unavailable")

func testCatalog() *testutil.FakeCatalog {
	return &testutil.FakeCatalog{
		Support: map[string]map[string]string{
			"T:System.Console": {"Windows": "8.0", ".NET Framework": "1.1", ".NET Standard": "1.3"},
			consoleWriteLine.MemberDocID: {
				"Windows": "8.0", ".NET Framework": "1.1", ".NET Standard": "1.3",
			},
			downloadString.MemberDocID: {"Windows": "8.0", ".NET Framework": "1.1"},
			createDomain.MemberDocID:   {".NET Framework": "1.1"},
		},
		Advice: map[string]string{
			createDomain.MemberDocID: "Use AssemblyLoadContext.",
		},
	}
}

func newTestEngine(c *testutil.FakeCatalog, f *testutil.FakePackageFinder) *Engine {
	if f == nil {
		f = &testutil.FakePackageFinder{}
	}
	return NewEngine(c, f).WithLogger(silent())
}

func TestNewEngine_NilCollaborators(t *testing.T) {
	assert.Panics(t, func() { NewEngine(nil, &testutil.FakePackageFinder{}) })
	assert.Panics(t, func() { NewEngine(testCatalog(), nil) })
}

func TestFindMembersNotInTargets(t *testing.T) {
	deps := model.Dependencies{}
	deps.Add(consoleWriteLine, asmA)
	deps.Add(downloadString, asmA)
	deps.Add(downloadString, asmB)
	deps.Add(createDomain, asmB)
	deps.Add(bHelper, asmA)
	// only referenced by a non-user assembly
	deps.Add(model.MemberInfo{MemberDocID: "M:System.Xml.XmlReader.Create", TypeDocID: "T:System.Xml.XmlReader", DefinedInAssemblyIdentity: mscorlib},
		model.AssemblyInfo{AssemblyIdentity: system})
	// not tracked by the catalog
	deps.Add(model.MemberInfo{MemberDocID: "M:Vendor.Api.Call", TypeDocID: "T:Vendor.Api", DefinedInAssemblyIdentity: "Vendor"}, asmA)

	e := newTestEngine(testCatalog(), nil)
	got, err := e.FindMembersNotInTargets(context.Background(), allTargets, []string{idA, idB}, deps)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, createDomain, got[0].MemberInfo)
	assert.Equal(t, []string{"", "1.1", ""}, got[0].TargetStatus)
	assert.Equal(t, "Use AssemblyLoadContext.", got[0].RecommendedChanges)

	assert.Equal(t, downloadString, got[1].MemberInfo)
	assert.Equal(t, []string{"8.0", "1.1", ""}, got[1].TargetStatus)
	assert.Empty(t, got[1].RecommendedChanges)
}

func TestFindMembersNotInTargets_MissingOnOneTargetListedOnce(t *testing.T) {
	deps := model.Dependencies{}
	deps.Add(downloadString, asmA)

	e := newTestEngine(testCatalog(), nil)
	got, err := e.FindMembersNotInTargets(context.Background(), []model.Target{win80, net11, netstd16}, []string{idA}, deps)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, downloadString.MemberDocID, got[0].MemberDocID)
	assert.Equal(t, "", got[0].TargetStatus[2])
}

func TestFindMembersNotInTargets_AllSupported(t *testing.T) {
	deps := model.Dependencies{}
	deps.Add(consoleWriteLine, asmA)

	e := newTestEngine(testCatalog(), nil)
	got, err := e.FindMembersNotInTargets(context.Background(), allTargets, []string{idA}, deps)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFindMembersNotInTargets_CatalogError(t *testing.T) {
	deps := model.Dependencies{}
	deps.Add(consoleWriteLine, asmA)

	c := testCatalog()
	c.Err = errCatalogDown
	e := newTestEngine(c, nil)

	_, err := e.FindMembersNotInTargets(context.Background(), allTargets, []string{idA}, deps)
	assert.ErrorIs(t, err, errCatalogDown)
}

func TestFindUnreferencedAssemblies(t *testing.T) {
	e := newTestEngine(testCatalog(), nil)

	got := e.FindUnreferencedAssemblies(
		[]string{"Zeta, Version=1.0.0.0", idA, "", "Alpha", "alpha", "Zeta, Version=1.0.0.0"},
		[]model.AssemblyInfo{asmA, asmB},
	)
	assert.Equal(t, []string{"Alpha", "Zeta, Version=1.0.0.0"}, got)

	assert.Empty(t, e.FindUnreferencedAssemblies(nil, []model.AssemblyInfo{asmA}))
}

func TestFindBreakingChangeSkippedAssemblies(t *testing.T) {
	e := newTestEngine(testCatalog(), nil)
	users := []model.AssemblyInfo{asmB, asmA, asmC}

	tests := []struct {
		name    string
		targets []model.Target
		ignore  []model.IgnoreAssemblyInfo
		want    []model.AssemblyInfo
	}{
		{
			name:    "identity with no targets",
			targets: allTargets,
			ignore:  []model.IgnoreAssemblyInfo{{AssemblyIdentity: idA}},
			want:    []model.AssemblyInfo{asmA},
		},
		{
			name:    "simple name",
			targets: allTargets,
			ignore:  []model.IgnoreAssemblyInfo{{AssemblyIdentity: "c"}},
			want:    []model.AssemblyInfo{asmC},
		},
		{
			name:    "targets cover the request",
			targets: []model.Target{win80, net11},
			ignore: []model.IgnoreAssemblyInfo{{
				AssemblyIdentity: "B",
				TargetsIgnored:   []string{".NET Framework,Version=v1.1", "Windows, Version=v8.0"},
			}},
			want: []model.AssemblyInfo{asmB},
		},
		{
			name:    "targets cover only part of the request",
			targets: []model.Target{win80, net11},
			ignore: []model.IgnoreAssemblyInfo{{
				AssemblyIdentity: "B",
				TargetsIgnored:   []string{"Windows,Version=v8.0"},
			}},
			want: []model.AssemblyInfo{},
		},
		{
			name:    "unknown assembly",
			targets: allTargets,
			ignore:  []model.IgnoreAssemblyInfo{{AssemblyIdentity: "Other"}},
			want:    []model.AssemblyInfo{},
		},
		{
			name:    "sorted output",
			targets: allTargets,
			ignore:  []model.IgnoreAssemblyInfo{{AssemblyIdentity: "B"}, {AssemblyIdentity: "A"}},
			want:    []model.AssemblyInfo{asmA, asmB},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.FindBreakingChangeSkippedAssemblies(tt.targets, users, tt.ignore)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindBreakingChanges(t *testing.T) {
	fixed := model.MustParseVersion("4.8")
	c := testCatalog()
	c.Breaks = []model.BreakingChange{
		{ID: "BC1", Title: "WriteLine flushes", Family: ".NET Framework", VersionBroken: model.MustParseVersion("1.0"), VersionFixed: &fixed, ApplicableAPIs: []string{consoleWriteLine.MemberDocID}},
		{ID: "BC2", Title: "Download encoding", Family: ".NET Framework", VersionBroken: model.MustParseVersion("1.1"), IsRetargeting: true, ApplicableAPIs: []string{downloadString.MemberDocID}},
		{ID: "BC3", Title: "Suppressed", Family: ".NET Framework", VersionBroken: model.MustParseVersion("1.0"), ApplicableAPIs: []string{createDomain.MemberDocID}},
		{ID: "BC4", Title: "Windows only", Family: "Windows", VersionBroken: model.MustParseVersion("8.0"), ApplicableAPIs: []string{consoleWriteLine.MemberDocID}},
	}

	deps := model.Dependencies{}
	deps.Add(consoleWriteLine, asmA)
	deps.Add(consoleWriteLine, asmB)
	deps.Add(downloadString, asmA)
	deps.Add(createDomain, asmA)
	deps.Add(consoleWriteLine, model.AssemblyInfo{AssemblyIdentity: system})

	users := []model.AssemblyInfo{asmA, asmB}
	e := newTestEngine(c, nil)

	t.Run("without retargeting", func(t *testing.T) {
		got, err := e.FindBreakingChanges(context.Background(), []model.Target{win80, net11}, deps, []model.AssemblyInfo{asmB}, []string{"bc3"}, users, false)
		require.NoError(t, err)

		require.Len(t, got, 2)
		assert.Equal(t, "BC4", got[0].Break.ID)
		assert.Equal(t, win80, got[0].Target)
		assert.Equal(t, asmA, got[0].DependantAssembly)
		assert.Equal(t, "BC1", got[1].Break.ID)
		assert.Equal(t, net11, got[1].Target)
		assert.Equal(t, consoleWriteLine, got[1].Member)
		assert.Equal(t, asmA, got[1].DependantAssembly)
	})

	t.Run("with retargeting", func(t *testing.T) {
		got, err := e.FindBreakingChanges(context.Background(), []model.Target{net11}, deps, nil, []string{"BC3"}, users, true)
		require.NoError(t, err)

		var ids []string
		for _, d := range got {
			ids = append(ids, d.Break.ID+"/"+d.DependantAssembly.Name())
		}
		assert.Equal(t, []string{"BC1/A", "BC1/B", "BC2/A"}, ids)
	})

	t.Run("nothing applies", func(t *testing.T) {
		got, err := e.FindBreakingChanges(context.Background(), []model.Target{netstd16}, deps, nil, nil, users, true)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("catalog failure", func(t *testing.T) {
		failing := testCatalog()
		failing.Err = errCatalogDown
		_, err := newTestEngine(failing, nil).FindBreakingChanges(context.Background(), allTargets, deps, nil, nil, users, false)
		assert.ErrorIs(t, err, errCatalogDown)
	})
}

func TestGetNuGetPackagesInfo(t *testing.T) {
	finder := &testutil.FakePackageFinder{
		Packages: map[string]map[string][]model.NuGetPackageID{
			"C": {
				win80.FullName():    packageIDs("C.Windows"),
				netstd16.FullName(): packageIDs("C.Portable"),
			},
		},
	}
	e := newTestEngine(testCatalog(), finder)

	got, err := e.GetNuGetPackagesInfo(context.Background(), []string{idA, idC, idA}, allTargets)
	require.NoError(t, err)

	require.Len(t, got, 2*len(allTargets))
	assert.Equal(t, 2, finder.Calls())

	for i, p := range got[:3] {
		assert.Equal(t, idA, p.AssemblyIdentity())
		assert.Equal(t, allTargets[i], p.Target())
		assert.False(t, p.HasPackages())
	}
	assert.Equal(t, packageIDs("C.Windows"), got[3].SupportedPackages())
	assert.False(t, got[4].HasPackages())
	assert.Equal(t, packageIDs("C.Portable"), got[5].SupportedPackages())
}

func TestGetNuGetPackagesInfo_RecordCount(t *testing.T) {
	e := newTestEngine(testCatalog(), &testutil.FakePackageFinder{})

	for _, n := range []int{0, 1, 3} {
		targets := allTargets[:n]
		got, err := e.GetNuGetPackagesInfo(context.Background(), []string{idA, idB, idC}, targets)
		require.NoError(t, err)
		assert.Len(t, got, 3*n)
	}
}

func TestGetNuGetPackagesInfo_FinderError(t *testing.T) {
	finderErr := errors.New("feed unreachable")
	e := newTestEngine(testCatalog(), &testutil.FakePackageFinder{Err: finderErr})

	_, err := e.GetNuGetPackagesInfo(context.Background(), []string{idA}, allTargets)
	assert.ErrorIs(t, err, finderErr)
}
