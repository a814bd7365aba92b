// Package model defines the values exchanged between the extraction, analysis
// and reporting stages.
//
// Every value is produced by exactly one stage and treated as read-only by the
// stages that consume it. Identities (assemblies, targets) compare with the
// case-insensitive ordinal rules of package ordinal.
//
// Key types:
//   - AssemblyInfo: an analyzed or referenced assembly
//   - MemberInfo: a referenced type or member, keyed by doc-id
//   - Dependencies: MemberInfo → referencing assemblies
//   - Target: a platform/runtime version (".NETFramework,Version=v4.8")
//   - NuGetPackageInfo: packages that supply an assembly on one target
//   - AnalyzeRequest / AnalyzeResponse: the analysis contract
package model
