package optimize

import (
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// combineDuplicateStreams points every reference to a byte identical stream
// at the lowest numbered copy. The copies become unreachable and are not
// written. It returns the number of streams dropped.
func (o *Optimizer) combineDuplicateStreams(pdf *model.Context) int {
	total := 0
	changed := true
	for changed {
		changed = false
		seen := make(map[string]int)
		replacements := make(map[int]int)

		for _, nr := range objectNumbers(pdf.XRefTable) {
			sd, ok := pdf.Table[nr].Object.(types.StreamDict)
			if !ok || !shareable(sd) {
				continue
			}
			h := hashObject(sd)
			if original, ok := seen[h]; ok {
				replacements[nr] = original
				changed = true
			} else {
				seen[h] = nr
			}
		}

		if len(replacements) > 0 {
			applyReplacements(pdf.XRefTable, replacements)
			total += len(replacements)
		}
	}
	return total
}

// shareable excludes streams whose identity matters to the file structure.
func shareable(sd types.StreamDict) bool {
	if sd.Raw == nil {
		return false
	}
	switch t := sd.Type(); {
	case t == nil:
		return true
	case *t == "XRef", *t == "ObjStm", *t == "Metadata":
		return false
	}
	return true
}

func objectNumbers(xref *model.XRefTable) []int {
	nrs := make([]int, 0, len(xref.Table))
	for nr, e := range xref.Table {
		if nr == 0 || e == nil || e.Free || e.Object == nil {
			continue
		}
		nrs = append(nrs, nr)
	}
	sort.Ints(nrs)
	return nrs
}

func applyReplacements(xref *model.XRefTable, replacements map[int]int) {
	for _, nr := range objectNumbers(xref) {
		e := xref.Table[nr]
		e.Object = replaceRefs(e.Object, replacements)
	}
	if xref.RootDict != nil {
		replaceRefs(xref.RootDict, replacements)
	}
}

// replaceRefs rewrites references in obj. Dicts and arrays are updated in
// place; the returned value must be stored for everything else.
func replaceRefs(obj types.Object, replacements map[int]int) types.Object {
	switch t := obj.(type) {
	case types.IndirectRef:
		if to, ok := replacements[t.ObjectNumber.Value()]; ok {
			return *types.NewIndirectRef(to, 0)
		}
		return t
	case types.Array:
		for i, v := range t {
			t[i] = replaceRefs(v, replacements)
		}
		return t
	case types.Dict:
		for k, v := range t {
			t[k] = replaceRefs(v, replacements)
		}
		return t
	case types.StreamDict:
		replaceRefs(t.Dict, replacements)
		return t
	}
	return obj
}
