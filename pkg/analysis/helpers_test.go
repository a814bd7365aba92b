package analysis

import (
	"github.com/simonhull/apiport/pkg/logger"
	"github.com/simonhull/apiport/pkg/model"
)

var (
	win80    = model.MustParseTarget("Windows,Version=v8.0")
	net11    = model.MustParseTarget(".NET Framework,Version=v1.1")
	netstd16 = model.MustParseTarget(".NET Standard,Version=v1.6")

	allTargets = []model.Target{win80, net11, netstd16}
)

const (
	idA = "A, Version=1.0.0.0, Culture=neutral, PublicKeyToken=null"
	idB = "B, Version=1.0.0.0, Culture=neutral, PublicKeyToken=null"
	idC = "C, Version=2.0.0.0, Culture=neutral, PublicKeyToken=null"

	mscorlib = "mscorlib, Version=4.0.0.0, Culture=neutral, PublicKeyToken=b77a5c561934e089"
	system   = "System, Version=4.0.0.0, Culture=neutral, PublicKeyToken=b77a5c561934e089"
)

var (
	asmA = model.AssemblyInfo{AssemblyIdentity: idA, IsExplicitlySpecified: true}
	asmB = model.AssemblyInfo{AssemblyIdentity: idB, IsExplicitlySpecified: true}
	asmC = model.AssemblyInfo{AssemblyIdentity: idC, PackageSubstitutable: true}

	consoleWriteLine = model.MemberInfo{
		MemberDocID:               "M:System.Console.WriteLine(System.String)",
		TypeDocID:                 "T:System.Console",
		DefinedInAssemblyIdentity: mscorlib,
	}
	downloadString = model.MemberInfo{
		MemberDocID:               "M:System.Net.WebClient.DownloadString(System.String)",
		TypeDocID:                 "T:System.Net.WebClient",
		DefinedInAssemblyIdentity: system,
	}
	createDomain = model.MemberInfo{
		MemberDocID:               "M:System.AppDomain.CreateDomain(System.String)",
		TypeDocID:                 "T:System.AppDomain",
		DefinedInAssemblyIdentity: mscorlib,
	}
	// helper defined in B and used by A
	bHelper = model.MemberInfo{
		MemberDocID:               "M:B.Helper.Run",
		TypeDocID:                 "T:B.Helper",
		DefinedInAssemblyIdentity: idB,
	}
)

func packageIDs(ids ...string) []model.NuGetPackageID {
	out := make([]model.NuGetPackageID, len(ids))
	for i, id := range ids {
		out[i] = model.NuGetPackageID{PackageID: id, Version: "1.0.0"}
	}
	return out
}

func silent() logger.Logger {
	return logger.NewSilentLogger()
}
