package report

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/apiport/pkg/logger"
	"github.com/simonhull/apiport/pkg/model"
)

const (
	idA      = "A, Version=1.0.0.0, Culture=neutral, PublicKeyToken=null"
	idB      = "B, Version=1.0.0.0, Culture=neutral, PublicKeyToken=null"
	mscorlib = "mscorlib, Version=4.0.0.0, Culture=neutral, PublicKeyToken=b77a5c561934e089"
)

var (
	targets = []model.Target{
		model.MustParseTarget(".NET Framework,Version=v1.1"),
		model.MustParseTarget(".NET Standard,Version=v1.6"),
		model.MustParseTarget("Windows,Version=v8.0"),
	}

	asmA = model.AssemblyInfo{AssemblyIdentity: idA, IsExplicitlySpecified: true}
	asmB = model.AssemblyInfo{AssemblyIdentity: idB, IsExplicitlySpecified: true}

	writeLine    = model.MemberInfo{MemberDocID: "M:System.Console.WriteLine(System.String)", TypeDocID: "T:System.Console", DefinedInAssemblyIdentity: mscorlib}
	getEnv       = model.MemberInfo{MemberDocID: "M:System.Environment.GetEnvironmentVariable(System.String)", TypeDocID: "T:System.Environment", DefinedInAssemblyIdentity: mscorlib}
	createDomain = model.MemberInfo{MemberDocID: "M:System.AppDomain.CreateDomain(System.String)", TypeDocID: "T:System.AppDomain", DefinedInAssemblyIdentity: mscorlib}
	bHelper      = model.MemberInfo{MemberDocID: "M:B.Helper.Run", TypeDocID: "T:B.Helper", DefinedInAssemblyIdentity: idB}
)

func sampleInput() model.ReportInput {
	deps := model.Dependencies{}
	deps.Add(writeLine, asmA)
	deps.Add(writeLine, asmB)
	deps.Add(getEnv, asmA)
	deps.Add(createDomain, asmB)
	deps.Add(bHelper, asmA)

	return model.ReportInput{
		Targets:        targets,
		SubmissionID:   "01HX0000000000000000000000",
		RequestFlags:   model.NewRequestFlags(),
		UserAssemblies: []model.AssemblyInfo{asmB, asmA},
		Dependencies:   deps,
		MissingDependencies: []model.MissingMember{
			{MemberInfo: createDomain, TargetStatus: []string{"2.0", "", ""}, RecommendedChanges: "Use AssemblyLoadContext."},
			{MemberInfo: getEnv, TargetStatus: []string{"1.1", "", "8.0"}},
		},
		UnresolvedAssemblies: map[string][]string{"Newtonsoft.Json": {idB, idA}},
		MissingAssemblies:    []string{"Newtonsoft.Json"},
		AssembliesWithErrors: []string{"broken.dll"},
		NuGetPackages: []model.NuGetPackageInfo{
			model.NewNuGetPackageInfo("Newtonsoft.Json", targets[1], []model.NuGetPackageID{{PackageID: "Newtonsoft.Json", Version: "13.0.3"}}),
			model.NewNuGetPackageInfo("Newtonsoft.Json", targets[2], nil),
		},
	}
}

func computeSample(t *testing.T) *model.ReportingResult {
	t.Helper()
	result, err := NewGenerator().WithLogger(logger.NewSilentLogger()).ComputeReport(context.Background(), sampleInput())
	require.NoError(t, err)
	return result
}

func TestComputeReport_PortabilityIndex(t *testing.T) {
	result := computeSample(t)

	require.Len(t, result.AssemblyUsage, 2)
	a, b := result.AssemblyUsage[0], result.AssemblyUsage[1]

	assert.Equal(t, asmA, a.Assembly)
	assert.Equal(t, 2, a.MemberCount)
	assert.Equal(t, []float64{1, 0.5, 1}, a.PortabilityIndex)

	assert.Equal(t, asmB, b.Assembly)
	assert.Equal(t, 2, b.MemberCount)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, b.PortabilityIndex)
}

func TestComputeReport_NoReferencesIsFullyPortable(t *testing.T) {
	in := sampleInput()
	in.UserAssemblies = append(in.UserAssemblies, model.AssemblyInfo{AssemblyIdentity: "Empty"})

	result, err := NewGenerator().WithLogger(logger.NewSilentLogger()).ComputeReport(context.Background(), in)
	require.NoError(t, err)

	empty := result.AssemblyUsage[2]
	assert.Equal(t, "Empty", empty.Assembly.AssemblyIdentity)
	assert.Zero(t, empty.MemberCount)
	assert.Equal(t, []float64{1, 1, 1}, empty.PortabilityIndex)
}

func TestComputeReport_MissingTypes(t *testing.T) {
	result := computeSample(t)

	require.Len(t, result.MissingTypes, 2)
	assert.Equal(t, "T:System.AppDomain", result.MissingTypes[0].TypeDocID)
	assert.Equal(t, []string{idB}, result.MissingTypes[0].UsedIn)
	assert.Equal(t, mscorlib, result.MissingTypes[0].DefinedInAssemblyIdentity)

	assert.Equal(t, "T:System.Environment", result.MissingTypes[1].TypeDocID)
	assert.Equal(t, []string{idA}, result.MissingTypes[1].UsedIn)
	require.Len(t, result.MissingTypes[1].Members, 1)
	assert.Equal(t, getEnv, result.MissingTypes[1].Members[0].MemberInfo)
}

func TestComputeReport_Collections(t *testing.T) {
	result := computeSample(t)

	assert.Equal(t, "01HX0000000000000000000000", result.SubmissionID)
	assert.Equal(t, map[string][]string{"Newtonsoft.Json": {idA, idB}}, result.UnresolvedAssemblies)
	assert.Equal(t, []string{"broken.dll"}, result.AssembliesWithErrors)
	assert.Len(t, result.NuGetPackages, 2)

	empty, err := NewGenerator().WithLogger(logger.NewSilentLogger()).ComputeReport(context.Background(), model.ReportInput{})
	require.NoError(t, err)
	assert.NotNil(t, empty.AssemblyUsage)
	assert.NotNil(t, empty.MissingTypes)
	assert.NotNil(t, empty.UnresolvedAssemblies)
	assert.NotNil(t, empty.MissingAssemblies)
	assert.NotNil(t, empty.AssembliesWithErrors)
}

func TestComputeReport_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGenerator().ComputeReport(ctx, sampleInput())
	assert.ErrorIs(t, err, context.Canceled)
}

func sampleResponse(t *testing.T) *model.AnalyzeResponse {
	t.Helper()
	in := sampleInput()
	return &model.AnalyzeResponse{
		ApplicationName:     "Contoso",
		SubmissionID:        in.SubmissionID,
		CatalogLastUpdated:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Targets:             in.Targets,
		MissingDependencies: in.MissingDependencies,
		BreakingChanges: []model.BreakingChangeDependency{{
			Break:             model.BreakingChange{ID: "BC1", Title: "Console output is buffered"},
			Member:            writeLine,
			DependantAssembly: asmA,
			Target:            targets[0],
		}},
		UnresolvedUserAssemblies:        in.MissingAssemblies,
		BreakingChangeSkippedAssemblies: []model.AssemblyInfo{asmB},
		NuGetPackages:                   in.NuGetPackages,
		ReportingResult:                 computeSample(t),
	}
}

func TestMarkdownWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MarkdownWriter{}.Write(&buf, sampleResponse(t)))
	out := buf.String()

	for _, want := range []string{
		"# Portability report: Contoso\n",
		"- Submission ID: `01HX0000000000000000000000`\n",
		"- Catalog last updated: 2024-05-01T12:00:00Z\n",
		"| Assembly | .NET Framework,Version=v1.1 | .NET Standard,Version=v1.6 | Windows,Version=v8.0 |\n|---|---|---|---|\n",
		"| " + idA + " | 100.0% | 50.0% | 100.0% |\n",
		"| " + idB + " | 50.0% | 50.0% | 50.0% |\n",
		"### T:System.AppDomain\n",
		"| M:System.AppDomain.CreateDomain(System.String) | Supported 2.0+ | Not supported | Not supported | Use AssemblyLoadContext. |\n",
		"| M:System.Environment.GetEnvironmentVariable(System.String) | Supported 1.1+ | Not supported | Supported 8.0+ |  |\n",
		"| BC1 | Console output is buffered | .NET Framework,Version=v1.1 | M:System.Console.WriteLine(System.String) | " + idA + " |\n",
		"## Skipped for breaking changes\n\n- " + idB + "\n",
		"| Newtonsoft.Json | " + idA + ", " + idB + " |\n",
		"## Assemblies with errors\n\n- broken.dll\n",
		"| Newtonsoft.Json | .NET Standard,Version=v1.6 | Newtonsoft.Json 13.0.3 |",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "| Newtonsoft.Json | Windows,Version=v8.0 |")
}

func TestMarkdownWriter_EmptyResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MarkdownWriter{}.Write(&buf, &model.AnalyzeResponse{ApplicationName: "Empty"}))
	out := buf.String()

	assert.Contains(t, out, "No user assemblies were analyzed.")
	assert.Contains(t, out, "No missing APIs were found.")
	assert.NotContains(t, out, "## Breaking changes")
	assert.NotContains(t, out, "## Package recommendations")
}

func TestHTMLWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTMLWriter{}.Write(&buf, sampleResponse(t)))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<title>Portability report: Contoso</title>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<h1 id=")
	assert.Contains(t, out, "Use AssemblyLoadContext.")
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONWriter{}.Write(&buf, sampleResponse(t)))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "Contoso", decoded["applicationName"])
	assert.Equal(t, "01HX0000000000000000000000", decoded["submissionId"])
	assert.Equal(t, []any{".NET Framework,Version=v1.1", ".NET Standard,Version=v1.6", "Windows,Version=v8.0"}, decoded["targets"])
}

func TestNewWriter(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"markdown", "markdown"},
		{"MD", "markdown"},
		{" html ", "html"},
		{"Json", "json"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			w, err := NewWriter(tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, w.Format())
		})
	}

	_, err := NewWriter("pdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Equal(t, []string{"markdown", "html", "json"}, Formats())
}

func TestFileWriter(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "out", "report")
	fw := NewFileWriter(false).WithLogger(logger.NewSilentLogger())

	paths, err := fw.Write(sampleResponse(t), base, []string{"json", "markdown"})
	require.NoError(t, err)
	assert.Equal(t, []string{base + ".json", base + ".md"}, paths)
	for _, p := range paths {
		assert.FileExists(t, p)
	}

	again, err := fw.Write(sampleResponse(t), base, []string{"json"})
	require.NoError(t, err)
	assert.Equal(t, []string{base + " (1).json"}, again)

	overwritten, err := NewFileWriter(true).WithLogger(logger.NewSilentLogger()).Write(sampleResponse(t), base+".json", []string{"json"})
	require.NoError(t, err)
	assert.Equal(t, []string{base + ".json"}, overwritten)
}

func TestFileWriter_UnknownFormatWritesNothing(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "report")

	_, err := NewFileWriter(false).WithLogger(logger.NewSilentLogger()).Write(sampleResponse(t), base, []string{"json", "pdf"})
	assert.ErrorIs(t, err, ErrUnknownFormat)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTransaction(t *testing.T) {
	dir := t.TempDir()

	t.Run("commit writes every file", func(t *testing.T) {
		tx := NewTransaction()
		tx.AddFile(filepath.Join(dir, "a", "one.txt"), []byte("one"), 0o644)
		tx.AddFile(filepath.Join(dir, "two.txt"), []byte("two"), 0o600)
		require.NoError(t, tx.Commit())

		got, err := os.ReadFile(filepath.Join(dir, "a", "one.txt"))
		require.NoError(t, err)
		assert.Equal(t, "one", string(got))

		assert.ErrorIs(t, tx.Commit(), ErrCommitted)
	})

	t.Run("failure removes placed files", func(t *testing.T) {
		blocker := filepath.Join(dir, "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

		first := filepath.Join(dir, "first.txt")
		tx := NewTransaction()
		tx.AddFile(first, []byte("first"), 0o644)
		tx.AddFile(filepath.Join(blocker, "nested.txt"), []byte("nested"), 0o644)

		assert.Error(t, tx.Commit())
		assert.NoFileExists(t, first)
	})
}
