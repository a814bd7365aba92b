package report

import (
	"encoding/json"
	"io"

	"github.com/simonhull/apiport/pkg/model"
)

// JSONWriter writes the response as indented JSON.
type JSONWriter struct{}

func (JSONWriter) Format() string    { return "json" }
func (JSONWriter) Extension() string { return ".json" }

func (JSONWriter) Write(w io.Writer, resp *model.AnalyzeResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
