package metadata

import (
	"fmt"
	"strings"
)

// Diagnostic codes.
const (
	CodeBadTypeRef         = "bad-typeref"
	CodeBadMemberRef       = "bad-memberref"
	CodeBadSignature       = "bad-signature"
	CodeBadAssemblyRef     = "bad-assemblyref"
	CodeBadCustomAttribute = "bad-custom-attribute"
)

// Diagnostic records a row that was skipped during extraction.
type Diagnostic struct {
	Code    string
	Message string
	// Location is the table row, e.g. "MemberRef[12]".
	Location string
}

func (d Diagnostic) String() string {
	msg := d.Message
	if d.Code != "" {
		msg = fmt.Sprintf("[%s] %s", d.Code, msg)
	}
	if d.Location != "" {
		return d.Location + ": " + msg
	}
	return msg
}

// Diagnostics holds the skipped rows of one extraction.
type Diagnostics struct {
	Items []Diagnostic
}

// Add records a diagnostic for a row.
func (d *Diagnostics) Add(code string, at Token, err error) {
	d.Items = append(d.Items, Diagnostic{Code: code, Message: err.Error(), Location: at.String()})
}

// Len returns the number of diagnostics.
func (d *Diagnostics) Len() int {
	return len(d.Items)
}

// Merge appends other's diagnostics.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Items = append(d.Items, other.Items...)
}

func (d Diagnostics) String() string {
	parts := make([]string, len(d.Items))
	for i, item := range d.Items {
		parts[i] = item.String()
	}
	return strings.Join(parts, "; ")
}
