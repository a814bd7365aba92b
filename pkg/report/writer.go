package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/simonhull/apiport/pkg/model"
)

// ErrUnknownFormat is returned for a result format no writer handles.
var ErrUnknownFormat = errors.New("unknown report format")

// Writer renders a response in one format.
type Writer interface {
	Format() string
	Extension() string
	Write(w io.Writer, resp *model.AnalyzeResponse) error
}

var writers = []Writer{MarkdownWriter{}, HTMLWriter{}, JSONWriter{}}

// Formats lists the supported format names.
func Formats() []string {
	out := make([]string, len(writers))
	for i, w := range writers {
		out[i] = w.Format()
	}
	return out
}

// NewWriter returns the writer for format. "md" is accepted for markdown.
func NewWriter(format string) (Writer, error) {
	name := strings.ToLower(strings.TrimSpace(format))
	if name == "md" {
		name = "markdown"
	}
	for _, w := range writers {
		if w.Format() == name {
			return w, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownFormat, format, strings.Join(Formats(), ", "))
}
