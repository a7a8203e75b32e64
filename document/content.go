package document

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ContentOf returns the decoded content of a page or form dict, joining
// arrays of streams with a newline. A missing /Contents yields nil.
func ContentOf(xref *model.XRefTable, d types.Dict) ([]byte, error) {
	obj, ok := d.Find("Contents")
	if !ok || obj == nil {
		return nil, nil
	}
	obj, err := xref.Dereference(obj)
	if err != nil || obj == nil {
		return nil, err
	}
	var parts []types.Object
	switch c := obj.(type) {
	case types.StreamDict:
		parts = []types.Object{c}
	case types.Array:
		parts = c
	default:
		return nil, fmt.Errorf("page contents are %T", obj)
	}
	var buf bytes.Buffer
	for _, p := range parts {
		sd, _, err := xref.DereferenceStreamDict(p)
		if err != nil {
			return nil, err
		}
		if sd == nil {
			continue
		}
		data, err := StreamContent(sd)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// StreamContent decodes sd without touching the shared original.
func StreamContent(sd *types.StreamDict) ([]byte, error) {
	cp := *sd
	if len(cp.FilterPipeline) == 0 {
		if cp.Content != nil {
			return cp.Content, nil
		}
		return cp.Raw, nil
	}
	if err := cp.Decode(); err != nil {
		return nil, err
	}
	return cp.Content, nil
}
