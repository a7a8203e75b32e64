package optimize

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/docxform/contentstream"
	"github.com/wudi/docxform/document"
)

// resourceUse collects the names a resource category dict must keep.
type resourceUse struct {
	dict types.Dict
	used map[string]bool
}

// cleanUnusedResources removes XObject and Font entries that no content
// stream of the owning pages names. Objects only reachable through them
// are then left out when the file is written. The pass gives up without
// changes when any page's usage cannot be determined.
func (o *Optimizer) cleanUnusedResources(pdf *model.Context) (int, error) {
	if err := pdf.EnsurePageCount(); err != nil {
		return 0, err
	}
	uses := make(map[string]*resourceUse)
	for nr := 1; nr <= pdf.PageCount; nr++ {
		pageDict, _, _, err := pdf.PageDict(nr, false)
		if err != nil {
			return 0, err
		}
		resObj, ok := pageDict.Find("Resources")
		if !ok {
			// Inherited resources may be shared with pages we cannot see.
			return 0, nil
		}
		res, err := pdf.DereferenceDict(resObj)
		if err != nil || res == nil {
			return 0, err
		}
		content, err := document.ContentOf(pdf.XRefTable, pageDict)
		if err != nil {
			return 0, nil
		}
		names, ok := usedNames(pdf.XRefTable, content, res, 0)
		if !ok {
			return 0, nil
		}
		owner := fmt.Sprintf("page %d", nr)
		if ref, isRef := resObj.(types.IndirectRef); isRef {
			owner = fmt.Sprintf("obj %d", ref.ObjectNumber.Value())
		}
		for _, cat := range []string{"XObject", "Font"} {
			sub, ok := res.Find(cat)
			if !ok {
				continue
			}
			key := owner + " " + cat
			if ref, isRef := sub.(types.IndirectRef); isRef {
				key = fmt.Sprintf("obj %d", ref.ObjectNumber.Value())
			}
			d, err := pdf.DereferenceDict(sub)
			if err != nil || d == nil {
				continue
			}
			u := uses[key]
			if u == nil {
				u = &resourceUse{dict: d, used: make(map[string]bool)}
				uses[key] = u
			}
			for n := range names[cat] {
				u.used[n] = true
			}
		}
	}

	removed := 0
	for _, u := range uses {
		for name := range u.dict {
			if !u.used[name] {
				delete(u.dict, name)
				removed++
			}
		}
	}
	return removed, nil
}

// usedNames returns the XObject and Font names content refers to. Form
// XObjects without their own resources draw from res and are followed.
func usedNames(xref *model.XRefTable, content []byte, res types.Dict, depth int) (map[string]map[string]bool, bool) {
	out := map[string]map[string]bool{"XObject": {}, "Font": {}}
	if depth > 8 {
		return out, false
	}
	ops, err := contentstream.Parse(content)
	if err != nil {
		return out, false
	}
	for _, op := range ops {
		switch op.Operator {
		case "Do":
			name, err := op.Name(0)
			if err != nil {
				continue
			}
			out["XObject"][name] = true
			inner, ok := formWithoutResources(xref, res, name)
			if !ok {
				continue
			}
			sub, ok := usedNames(xref, inner, res, depth+1)
			if !ok {
				return out, false
			}
			for cat, names := range sub {
				for n := range names {
					out[cat][n] = true
				}
			}
		case "Tf":
			if name, err := op.Name(0); err == nil {
				out["Font"][name] = true
			}
		}
	}
	return out, true
}

func formWithoutResources(xref *model.XRefTable, res types.Dict, name string) ([]byte, bool) {
	xobjs, err := xref.DereferenceDict(res["XObject"])
	if err != nil || xobjs == nil {
		return nil, false
	}
	obj, ok := xobjs.Find(name)
	if !ok {
		return nil, false
	}
	sd, _, err := xref.DereferenceStreamDict(obj)
	if err != nil || sd == nil {
		return nil, false
	}
	if st := sd.Subtype(); st == nil || *st != "Form" {
		return nil, false
	}
	if _, has := sd.Find("Resources"); has {
		return nil, false
	}
	data, err := document.StreamContent(sd)
	if err != nil {
		return nil, false
	}
	return data, true
}
