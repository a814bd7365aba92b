package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/simonhull/apiport/pkg/model"
)

//go:embed templates/report.html.tmpl
var htmlTemplate string

var (
	pageTemplate = template.Must(template.New("report.html").Parse(htmlTemplate))

	md = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
)

// HTMLWriter renders the markdown report to a standalone HTML page.
type HTMLWriter struct{}

func (HTMLWriter) Format() string    { return "html" }
func (HTMLWriter) Extension() string { return ".html" }

func (HTMLWriter) Write(w io.Writer, resp *model.AnalyzeResponse) error {
	source, err := renderMarkdown(resp)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	if err := md.Convert(source, &body); err != nil {
		return fmt.Errorf("converting report markdown: %w", err)
	}

	data := struct {
		Title string
		Body  template.HTML
	}{
		Title: "Portability report: " + resp.ApplicationName,
		Body:  template.HTML(body.String()),
	}
	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("executing html template: %w", err)
	}
	return nil
}
