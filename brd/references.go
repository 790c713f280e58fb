package brd

import (
	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// scrubReferenceURNs removes the library_urn attribute from every <element>
// part reference in the document. After merging there is exactly one library
// per name so the urn qualifier has nothing left to disambiguate. The library
// and package attributes are left alone - resolving them against the merged
// library is the viewer's business, not ours.
func scrubReferenceURNs(doc *etree.Document, chg *Changes, log *zap.Logger) {
	for _, el := range doc.FindElements("//" + elementTag) {
		attr := el.SelectAttr(libraryURNAttr)
		if attr == nil {
			continue
		}
		urn := attr.Value
		el.RemoveAttr(libraryURNAttr)
		chg.ReferencesUpdated++
		chg.addf("element %q: removed library_urn %q", el.SelectAttrValue(nameAttr, ""), urn)
		log.Debug("Removed urn qualifier from part reference",
			zap.String("element", el.SelectAttrValue(nameAttr, "")), zap.String("urn", urn))
	}
}
