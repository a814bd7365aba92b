// Package metadata reads CLI (ECMA-335) metadata from managed PE files without
// loading or executing them.
//
// The reader maps the metadata block into memory once, parses the stream
// headers and the "#~" table stream, and exposes table rows as plain records
// whose cross-table references are resolved row indices. Referenced assemblies
// are never opened: every fact comes from the file itself.
//
// Key types:
//   - Module: an opened metadata block with typed table accessors
//   - Facts: the portability facts of one assembly (identity, target framework,
//     assembly references, external type and member references)
//   - Diagnostics: rows that were skipped because they were malformed
package metadata
