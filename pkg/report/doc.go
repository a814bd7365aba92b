// Package report builds the reporting view of an analysis and writes it to
// disk.
//
// Generator.ComputeReport turns the analyzer's intermediate results into a
// model.ReportingResult: a portability index per user assembly and target,
// and the missing members grouped by declaring type.
//
// Writers render a full model.AnalyzeResponse as markdown, HTML or JSON.
// FileWriter stages every requested format in a Transaction so either all
// report files appear or none do:
//
//	fw := report.NewFileWriter(false)
//	paths, err := fw.Write(resp, "out/ApiPortAnalysis", []string{"html", "json"})
package report
