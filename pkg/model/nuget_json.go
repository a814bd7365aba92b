package model

import "encoding/json"

// MarshalJSON implements json.Marshaler.
func (p NuGetPackageInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(nugetPackageInfoJSON{
		AssemblyIdentity:  p.assemblyIdentity,
		Target:            p.target,
		SupportedPackages: p.SupportedPackages(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *NuGetPackageInfo) UnmarshalJSON(b []byte) error {
	var raw nugetPackageInfoJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = NewNuGetPackageInfo(raw.AssemblyIdentity, raw.Target, raw.SupportedPackages)
	return nil
}
