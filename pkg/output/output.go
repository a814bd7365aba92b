// Package output prints styled messages for the apiport command line.
//
// Functions use lipgloss for styling but abstract away the details from callers.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("green")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)

	mu          sync.Mutex
	out         io.Writer = os.Stdout
	verboseMode bool
)

// SetVerbose enables or disables verbose output.
// This should be called by the CLI when the --verbose flag is set.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verboseMode = v
}

// SetWriter redirects all output, returning the previous writer.
func SetWriter(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

func printLine(s string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(out, s)
}

// Success prints a success message in green.
//
// Example:
//
//	output.Success("Report written to ApiPortAnalysis.md")
func Success(msg string) {
	printLine(successStyle.Render("✔ " + msg))
}

// Error prints an error message in red.
func Error(msg string) {
	printLine(errorStyle.Render("✖ " + msg))
}

// Warn prints a warning, e.g. for input files that could not be analyzed.
func Warn(msg string) {
	printLine(warnStyle.Render("! " + msg))
}

// Info prints an informational message in cyan.
func Info(msg string) {
	printLine(infoStyle.Render("• " + msg))
}

// Step prints an indented sub-item in gray.
//
// Example:
//
//	output.Step("MyApp.dll")
func Step(msg string) {
	printLine(stepStyle.Render("   " + msg))
}

// Verbose prints a debug message only if verbose mode is enabled.
func Verbose(msg string) {
	mu.Lock()
	v := verboseMode
	mu.Unlock()
	if v {
		printLine(stepStyle.Render("… " + msg))
	}
}

// Header prints a section title.
func Header(title string) {
	printLine(headerStyle.Render(title))
}

// Table prints rows as aligned columns. The first row is the header.
func Table(rows [][]string) {
	if len(rows) == 0 {
		return
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			style := lipgloss.NewStyle()
			if i < len(widths) {
				style = style.Width(widths[i])
			}
			if r == 0 {
				style = style.Bold(true)
			}
			cells[i] = style.Render(cell)
		}
		printLine(strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}
