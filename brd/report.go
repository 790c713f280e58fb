package brd

import (
	"fmt"
	"sort"

	"github.com/maruel/natural"
)

// Changes accumulates summary counters and a human readable trace of every
// structural decision made during a repair pass. It is written to by the
// grouping, planning, mutation and reference cleanup steps and never read by
// them; it has no effect on correctness.
type Changes struct {
	LibrariesBefore   int
	LibrariesAfter    int
	GroupsMerged      int
	ReferencesUpdated int
	PackagesRetained  int

	lines  []string
	merged []string
}

func (c *Changes) addf(format string, args ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func (c *Changes) groupMerged(name string) {
	c.GroupsMerged++
	c.merged = append(c.merged, name)
}

// Trace returns accumulated lines in the order they were produced.
func (c *Changes) Trace() []string {
	return c.lines
}

// finish appends the closing summary. Merged names are listed in natural
// order so that "lib2" sorts before "lib10".
func (c *Changes) finish() {
	if len(c.merged) > 0 {
		names := append([]string{}, c.merged...)
		sort.Sort(natural.StringSlice(names))
		line := "merged libraries:"
		for _, n := range names {
			line += " " + n
		}
		c.lines = append(c.lines, line)
	}
	c.addf("libraries: %d before, %d after; %d group(s) merged, %d package(s) retained, %d reference(s) updated",
		c.LibrariesBefore, c.LibrariesAfter, c.GroupsMerged, c.PackagesRetained, c.ReferencesUpdated)
}
