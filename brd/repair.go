package brd

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// Process merges duplicate libraries in an already parsed document and cleans
// up part references. The document is mutated in place. When no library name
// occurs more than once the document is left completely untouched and the
// returned counters say so.
func Process(doc *etree.Document, log *zap.Logger) (*Changes, error) {
	groups, err := collectLibraries(doc)
	if err != nil {
		return nil, err
	}

	chg := &Changes{}
	for _, g := range groups {
		chg.LibrariesBefore += len(g.libs)
	}
	chg.LibrariesAfter = chg.LibrariesBefore

	plans := planMerges(groups, chg, log)
	if len(plans) == 0 {
		chg.finish()
		return chg, nil
	}

	for _, plan := range plans {
		applyPlan(plan, chg, log)
		chg.groupMerged(plan.name)
		chg.LibrariesAfter -= len(plan.dropped)
	}
	scrubReferenceURNs(doc, chg, log)
	chg.finish()
	return chg, nil
}

// Repair is the single public operation over raw document text: parse, merge
// duplicate libraries, scrub references, serialize. It is a pure function of
// its input - no state is shared between calls. When the document has no
// duplicate library names the input text is passed through byte-identical
// except for the guaranteed declaration line.
func Repair(text string, log *zap.Logger) (*Result, error) {
	doc, err := Parse(strings.NewReader(text))
	if err != nil {
		return nil, err
	}

	chg, err := Process(doc, log)
	if err != nil {
		return nil, err
	}

	res := &Result{
		LibrariesBefore:   chg.LibrariesBefore,
		LibrariesAfter:    chg.LibrariesAfter,
		GroupsMerged:      chg.GroupsMerged,
		ReferencesUpdated: chg.ReferencesUpdated,
		PackagesRetained:  chg.PackagesRetained,
		Trace:             chg.Trace(),
	}

	if chg.GroupsMerged == 0 {
		// nothing was touched - hand the original text back
		res.Output = EnsureDeclaration(text)
		return res, nil
	}

	out, err := doc.WriteToString()
	if err != nil {
		return nil, fmt.Errorf("unable to serialize repaired document: %w", err)
	}
	res.Output = EnsureDeclaration(out)
	return res, nil
}

// EnsureDeclaration guarantees that document text starts with the canonical
// XML declaration line without altering anything else.
func EnsureDeclaration(text string) string {
	if strings.HasPrefix(strings.TrimLeft(text, " \t\r\n"), "<?xml") {
		return text
	}
	return Declaration + "\n" + text
}
