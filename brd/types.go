// Package brd repairs EAGLE board documents in which a single library name is
// split across several <library> sections differing only in the optional urn
// attribute. Some viewers resolve libraries by name alone, so package
// definitions living in the urn-qualified copies silently fail to render.
// The repair merges every such group into the first copy in document order,
// drops the rest and removes urn qualifiers from part references.
package brd

import "errors"

// Element and attribute names of the board format we care about. Everything
// nested inside a <package> is treated as opaque and is never inspected.
const (
	libraryTag  = "library"
	packagesTag = "packages"
	packageTag  = "package"
	elementTag  = "element"

	nameAttr       = "name"
	urnAttr        = "urn"
	libraryURNAttr = "library_urn"
)

// Declaration is the XML declaration line guaranteed to start repaired output.
const Declaration = `<?xml version="1.0" encoding="utf-8"?>`

// ErrMalformed reports input that cannot be processed as a board document:
// either text that does not parse as XML at all or a <library> without the
// mandatory name attribute. No partial result is ever produced in this case.
var ErrMalformed = errors.New("malformed board document")

// Result is the outcome of a single Repair call.
type Result struct {
	// Output is the repaired document text, starting with Declaration.
	Output string

	LibrariesBefore   int
	LibrariesAfter    int
	GroupsMerged      int
	ReferencesUpdated int
	PackagesRetained  int

	// Trace holds one human readable line per structural decision plus a
	// closing summary. It exists for auditability only.
	Trace []string
}

// Changed reports whether the document was mutated. When false Output is the
// input text unchanged except for the guaranteed declaration line.
func (r *Result) Changed() bool {
	return r.GroupsMerged > 0
}
