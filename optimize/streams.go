package optimize

import (
	"github.com/pdfcpu/pdfcpu/pkg/filter"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// compressStreams Flate encodes streams stored without any filter. Streams
// that would not get smaller are left alone.
func (o *Optimizer) compressStreams(pdf *model.Context) (int, error) {
	n := 0
	for _, nr := range objectNumbers(pdf.XRefTable) {
		e := pdf.Table[nr]
		sd, ok := e.Object.(types.StreamDict)
		if !ok || len(sd.FilterPipeline) > 0 || !shareable(sd) {
			continue
		}
		if _, has := sd.Find("Filter"); has {
			continue
		}
		plain := sd.Raw
		if len(plain) < 64 {
			continue
		}
		cp := sd
		cp.Dict = sd.Dict.Clone().(types.Dict)
		cp.Content = plain
		cp.FilterPipeline = []types.PDFFilter{{Name: filter.Flate}}
		cp.InsertName("Filter", filter.Flate)
		cp.Delete("DecodeParms")
		if err := cp.Encode(); err != nil {
			return n, err
		}
		if len(cp.Raw) >= len(plain) {
			continue
		}
		e.Object = cp
		n++
	}
	return n, nil
}
