// Package dependency turns a set of assembly files into the usage graph the
// analysis engine walks.
//
// Every file is read in parallel with the metadata package. References to
// framework assemblies become member dependencies, references to other
// assemblies missing from the input become unresolved assemblies, and files
// that cannot be read are collected as assemblies with errors instead of
// failing the run.
package dependency
