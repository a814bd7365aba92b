package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/simonhull/apiport/pkg/model"
	"github.com/simonhull/apiport/pkg/ordinal"
)

//go:embed templates/report.md.tmpl
var markdownTemplate string

var mdTemplate = template.Must(template.New("report.md").Funcs(template.FuncMap{
	"join": strings.Join,
	"row":  markdownRow,
	"rule": markdownRule,
}).Parse(markdownTemplate))

// MarkdownWriter renders a response as GitHub flavored markdown.
type MarkdownWriter struct{}

func (MarkdownWriter) Format() string    { return "markdown" }
func (MarkdownWriter) Extension() string { return ".md" }

func (MarkdownWriter) Write(w io.Writer, resp *model.AnalyzeResponse) error {
	b, err := renderMarkdown(resp)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func renderMarkdown(resp *model.AnalyzeResponse) ([]byte, error) {
	var buf bytes.Buffer
	if err := mdTemplate.Execute(&buf, newMarkdownView(resp)); err != nil {
		return nil, fmt.Errorf("executing markdown template: %w", err)
	}
	return buf.Bytes(), nil
}

type typeView struct {
	Name     string
	Assembly string
	UsedIn   []string
	Rows     [][]string
}

type markdownView struct {
	Title          string
	SubmissionID   string
	CatalogUpdated string
	Targets        []string

	SummaryHeader []string
	Summary       [][]string

	MemberHeader []string
	MissingTypes []typeView

	BreakingHeader  []string
	BreakingChanges [][]string
	Skipped         []string

	UnresolvedHeader []string
	Unresolved       [][]string
	WithErrors       []string

	PackageHeader []string
	Packages      [][]string
}

func newMarkdownView(resp *model.AnalyzeResponse) markdownView {
	targets := model.TargetNames(resp.Targets)
	v := markdownView{
		Title:            resp.ApplicationName,
		SubmissionID:     resp.SubmissionID,
		CatalogUpdated:   resp.CatalogLastUpdated.UTC().Format(time.RFC3339),
		Targets:          targets,
		SummaryHeader:    append([]string{"Assembly"}, targets...),
		MemberHeader:     append(append([]string{"Member"}, targets...), "Recommended changes"),
		BreakingHeader:   []string{"ID", "Title", "Target", "Member", "Assembly"},
		UnresolvedHeader: []string{"Assembly", "Used by"},
		PackageHeader:    []string{"Assembly", "Target", "Packages"},
	}

	result := resp.ReportingResult
	if result == nil {
		result = &model.ReportingResult{}
	}

	for _, u := range result.AssemblyUsage {
		row := []string{u.Assembly.AssemblyIdentity}
		for _, index := range u.PortabilityIndex {
			row = append(row, fmt.Sprintf("%.1f%%", index*100))
		}
		v.Summary = append(v.Summary, row)
	}

	for _, t := range result.MissingTypes {
		tv := typeView{Name: t.TypeDocID, Assembly: t.DefinedInAssemblyIdentity, UsedIn: t.UsedIn}
		for _, m := range t.Members {
			row := []string{m.MemberDocID}
			for _, status := range m.TargetStatus {
				row = append(row, statusCell(status))
			}
			tv.Rows = append(tv.Rows, append(row, m.RecommendedChanges))
		}
		v.MissingTypes = append(v.MissingTypes, tv)
	}

	for _, b := range resp.BreakingChanges {
		v.BreakingChanges = append(v.BreakingChanges, []string{
			b.Break.ID, b.Break.Title, b.Target.FullName(), b.Member.MemberDocID, b.DependantAssembly.AssemblyIdentity,
		})
	}
	for _, a := range resp.BreakingChangeSkippedAssemblies {
		v.Skipped = append(v.Skipped, a.AssemblyIdentity)
	}

	names := make([]string, 0, len(result.UnresolvedAssemblies))
	for name := range result.UnresolvedAssemblies {
		names = append(names, name)
	}
	ordinal.Sort(names)
	for _, name := range names {
		v.Unresolved = append(v.Unresolved, []string{name, strings.Join(result.UnresolvedAssemblies[name], ", ")})
	}
	v.WithErrors = result.AssembliesWithErrors

	for _, p := range resp.NuGetPackages {
		if !p.HasPackages() {
			continue
		}
		var ids []string
		for _, id := range p.SupportedPackages() {
			ids = append(ids, id.PackageID+" "+id.Version)
		}
		v.Packages = append(v.Packages, []string{p.AssemblyIdentity(), p.Target().FullName(), strings.Join(ids, ", ")})
	}
	return v
}

func statusCell(status string) string {
	if status == "" {
		return "Not supported"
	}
	return "Supported " + status + "+"
}

func markdownRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return "| " + strings.Join(escaped, " | ") + " |"
}

func markdownRule(header []string) string {
	return strings.Repeat("|---", len(header)) + "|"
}
