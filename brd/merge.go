package brd

import (
	"fmt"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// libraryGroup is the set of <library> elements sharing one name, in document
// order.
type libraryGroup struct {
	name string
	libs []*etree.Element
}

// collectLibraries finds every <library> in the document, regardless of
// nesting depth, and groups them by name attribute preserving document order
// both across groups and within each group. The document is not modified.
func collectLibraries(doc *etree.Document) ([]libraryGroup, error) {
	var (
		groups []libraryGroup
		index  = make(map[string]int)
	)
	for _, lib := range doc.FindElements("//" + libraryTag) {
		attr := lib.SelectAttr(nameAttr)
		if attr == nil {
			return nil, fmt.Errorf("%w: library element without name attribute", ErrMalformed)
		}
		i, ok := index[attr.Value]
		if !ok {
			i = len(groups)
			index[attr.Value] = i
			groups = append(groups, libraryGroup{name: attr.Value})
		}
		groups[i].libs = append(groups[i].libs, lib)
	}
	return groups, nil
}

// mergePlan describes the merge of one group: the library kept in place, the
// copies to drop and the union of their packages. Union keys keep the
// position of the first occurrence of a package name while the stored element
// comes from the last occurrence - a deliberately simple policy since package
// bodies are opaque and cannot be reconciled.
type mergePlan struct {
	name     string
	retained *etree.Element
	dropped  []*etree.Element
	order    []string
	packages map[string]*etree.Element
	counts   []int
}

// planMerges selects groups with more than one member and computes a merge
// plan for each. Pure computation - no mutation happens here.
func planMerges(groups []libraryGroup, chg *Changes, log *zap.Logger) []mergePlan {
	var plans []mergePlan
	for _, g := range groups {
		if len(g.libs) < 2 {
			continue
		}

		chg.addf("library %q: found %d copies, merging", g.name, len(g.libs))
		log.Debug("Duplicate library detected", zap.String("library", g.name), zap.Int("copies", len(g.libs)))

		plan := mergePlan{
			name:     g.name,
			retained: g.libs[0],
			dropped:  g.libs[1:],
			packages: make(map[string]*etree.Element),
			counts:   make([]int, len(g.libs)),
		}
		for i, lib := range g.libs {
			wrapper := lib.SelectElement(packagesTag)
			if wrapper == nil {
				continue
			}
			for _, pkg := range wrapper.SelectElements(packageTag) {
				pkgName := pkg.SelectAttrValue(nameAttr, "")
				if _, seen := plan.packages[pkgName]; !seen {
					plan.order = append(plan.order, pkgName)
					chg.addf("library %q: package %q taken from copy %d", g.name, pkgName, i+1)
				} else {
					chg.addf("library %q: package %q replaced by definition from copy %d", g.name, pkgName, i+1)
					log.Debug("Package name collision, keeping later definition",
						zap.String("library", g.name), zap.String("package", pkgName), zap.Int("copy", i+1))
				}
				plan.packages[pkgName] = pkg
				plan.counts[i]++
			}
		}
		chg.PackagesRetained += len(plan.order)
		plans = append(plans, plan)
	}
	return plans
}

// applyPlan mutates the document according to one merge plan: the retained
// library loses its urn attribute, its <packages> wrapper ends up holding
// exactly the planned union in plan order, and every duplicate copy is
// detached from its parent. Nothing else in the document is touched.
func applyPlan(plan mergePlan, chg *Changes, log *zap.Logger) {
	plan.retained.RemoveAttr(urnAttr)

	wrapper := plan.retained.SelectElement(packagesTag)
	if wrapper == nil {
		wrapper = plan.retained.CreateElement(packagesTag)
	}
	for len(wrapper.Child) > 0 {
		wrapper.RemoveChildAt(0)
	}
	for _, pkgName := range plan.order {
		// AddChild detaches the element from its current parent first
		wrapper.AddChild(plan.packages[pkgName])
	}

	for i, dup := range plan.dropped {
		urn := dup.SelectAttrValue(urnAttr, "")
		if parent := dup.Parent(); parent != nil {
			parent.RemoveChild(dup)
		}
		chg.addf("library %q: removed copy %d (urn %q), %d package(s) contributed", plan.name, i+2, urn, plan.counts[i+1])
		log.Debug("Removed duplicate library",
			zap.String("library", plan.name), zap.String("urn", urn), zap.Int("packages", plan.counts[i+1]))
	}
}
