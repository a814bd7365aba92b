// Package client drives a complete analysis from file paths to report files.
//
// A run discovers the input binaries, rejects requests above the size limit
// before doing any work, extracts dependencies, builds the AnalyzeRequest,
// analyzes it under a fresh submission id and writes the reports.
package client
