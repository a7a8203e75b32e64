package render

import (
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/docxform/contentstream"
	"github.com/wudi/docxform/coords"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/raster"
)

// interpreter holds what is shared by all content streams of one page.
type interpreter struct {
	ctx      context.Context
	pdf      *model.Context
	xref     *model.XRefTable
	surface  *raster.Surface
	opts     Options
	pageNr   int
	fonts    map[types.IndirectRef]*pdfFont
	images   map[types.IndirectRef]*decodedImage
	maxDepth int
}

// runner executes one content stream (page or form) against a resource
// dictionary.
type runner struct {
	*interpreter
	res   types.Dict
	depth int

	gs    gstate
	stack []gstate

	path     *raster.Path
	clipNext bool
	curX     float64 // current point in user space
	curY     float64

	tm  coords.Matrix
	tlm coords.Matrix
}

func (in *interpreter) run(content []byte, res types.Dict, st gstate, depth int) error {
	r := &runner{
		interpreter: in,
		res:         res,
		depth:       depth,
		gs:          st,
		path:        raster.NewPath(),
		tm:          coords.Identity(),
		tlm:         coords.Identity(),
	}
	p := contentstream.NewProcessor(in.opts.Strategy)
	p.Page = in.pageNr
	p.Component = "render"
	r.register(p)
	return p.Process(in.ctx, content)
}

func (r *runner) register(p *contentstream.Processor) {
	handlers := map[string]contentstream.HandlerFunc{
		"q":  r.opSave,
		"Q":  r.opRestore,
		"cm": r.opConcat,
		"w":  r.opLineWidth,
		"gs": r.opExtGState,

		"m":  r.opMoveTo,
		"l":  r.opLineTo,
		"c":  r.opCurveTo,
		"v":  r.opCurveToV,
		"y":  r.opCurveToY,
		"h":  r.opClosePath,
		"re": r.opRect,

		"S":  r.paintOp(false, true, false),
		"s":  r.paintOp(false, true, true),
		"f":  r.paintOp(true, false, false),
		"F":  r.paintOp(true, false, false),
		"f*": r.paintOp(true, false, false),
		"B":  r.paintOp(true, true, false),
		"B*": r.paintOp(true, true, false),
		"b":  r.paintOp(true, true, true),
		"b*": r.paintOp(true, true, true),
		"n":  r.paintOp(false, false, false),
		"W":  r.opClip,
		"W*": r.opClip,

		"g":   r.deviceColor(deviceGray, false),
		"G":   r.deviceColor(deviceGray, true),
		"rg":  r.deviceColor(deviceRGB, false),
		"RG":  r.deviceColor(deviceRGB, true),
		"k":   r.deviceColor(deviceCMYK, false),
		"K":   r.deviceColor(deviceCMYK, true),
		"cs":  r.opColorSpace(false),
		"CS":  r.opColorSpace(true),
		"sc":  r.opSetColor(false),
		"scn": r.opSetColor(false),
		"SC":  r.opSetColor(true),
		"SCN": r.opSetColor(true),

		"BT": r.opBeginText,
		"ET": r.opEndText,
		"Tf": r.opFont,
		"Td": r.opTextMove,
		"TD": r.opTextMoveLeading,
		"Tm": r.opTextMatrix,
		"T*": r.opNextLine,
		"Tj": r.opShowText,
		"TJ": r.opShowTextArray,
		"'":  r.opNextLineShow,
		`"`:  r.opSpacingShow,
		"Tc": r.textParam(func(v float64) { r.gs.charSpacing = v }),
		"Tw": r.textParam(func(v float64) { r.gs.wordSpacing = v }),
		"Tz": r.textParam(func(v float64) { r.gs.hscale = v / 100 }),
		"TL": r.textParam(func(v float64) { r.gs.leading = v }),
		"Ts": r.textParam(func(v float64) { r.gs.rise = v }),
		"Tr": r.opRenderMode,

		"Do": r.opXObject,
	}
	for op, h := range handlers {
		p.RegisterHandler(op, h)
	}
}

func (r *runner) opSave(contentstream.Operation) error {
	r.stack = append(r.stack, r.gs)
	return nil
}

func (r *runner) opRestore(contentstream.Operation) error {
	if len(r.stack) == 0 {
		return fmt.Errorf("Q without matching q")
	}
	r.gs = r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	return nil
}

func (r *runner) opConcat(op contentstream.Operation) error {
	v, err := op.Floats(6)
	if err != nil {
		return err
	}
	r.gs.ctm = coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}.Multiply(r.gs.ctm)
	return nil
}

func (r *runner) opLineWidth(op contentstream.Operation) error {
	v, err := op.Float(0)
	if err != nil {
		return err
	}
	r.gs.lineWidth = v
	return nil
}

func (r *runner) opExtGState(op contentstream.Operation) error {
	name, err := op.Name(0)
	if err != nil {
		return err
	}
	obj, err := r.resource("ExtGState", name)
	if err != nil {
		return err
	}
	d, err := r.xref.DereferenceDict(obj)
	if err != nil || d == nil {
		return fmt.Errorf("ExtGState %s: %v", name, err)
	}
	if v, ok := r.number(d, "ca"); ok {
		r.gs.fillAlpha = clamp01(v)
	}
	if v, ok := r.number(d, "CA"); ok {
		r.gs.strokeAlpha = clamp01(v)
	}
	if v, ok := r.number(d, "LW"); ok {
		r.gs.lineWidth = v
	}
	if obj, ok := d.Find("Font"); ok {
		arr, err := r.xref.DereferenceArray(obj)
		if err == nil && len(arr) == 2 {
			if ref, ok := arr[0].(types.IndirectRef); ok {
				f, err := r.loadFont(ref)
				if err != nil {
					return err
				}
				r.gs.font = f
			}
			if size, err := r.xref.DereferenceNumber(arr[1]); err == nil {
				r.gs.fontSize = size
			}
		}
	}
	return nil
}

func (r *runner) moveTo(x, y float64) {
	px, py := r.gs.ctm.Apply(x, y)
	r.path.MoveTo(px, py)
	r.curX, r.curY = x, y
}

func (r *runner) opMoveTo(op contentstream.Operation) error {
	v, err := op.Floats(2)
	if err != nil {
		return err
	}
	r.moveTo(v[0], v[1])
	return nil
}

func (r *runner) opLineTo(op contentstream.Operation) error {
	v, err := op.Floats(2)
	if err != nil {
		return err
	}
	px, py := r.gs.ctm.Apply(v[0], v[1])
	r.path.LineTo(px, py)
	r.curX, r.curY = v[0], v[1]
	return nil
}

func (r *runner) curve(x1, y1, x2, y2, x3, y3 float64) {
	m := r.gs.ctm
	ax, ay := m.Apply(x1, y1)
	bx, by := m.Apply(x2, y2)
	cx, cy := m.Apply(x3, y3)
	r.path.CubeTo(ax, ay, bx, by, cx, cy)
	r.curX, r.curY = x3, y3
}

func (r *runner) opCurveTo(op contentstream.Operation) error {
	v, err := op.Floats(6)
	if err != nil {
		return err
	}
	r.curve(v[0], v[1], v[2], v[3], v[4], v[5])
	return nil
}

func (r *runner) opCurveToV(op contentstream.Operation) error {
	v, err := op.Floats(4)
	if err != nil {
		return err
	}
	r.curve(r.curX, r.curY, v[0], v[1], v[2], v[3])
	return nil
}

func (r *runner) opCurveToY(op contentstream.Operation) error {
	v, err := op.Floats(4)
	if err != nil {
		return err
	}
	r.curve(v[0], v[1], v[2], v[3], v[2], v[3])
	return nil
}

func (r *runner) opClosePath(contentstream.Operation) error {
	r.path.Close()
	return nil
}

func (r *runner) opRect(op contentstream.Operation) error {
	v, err := op.Floats(4)
	if err != nil {
		return err
	}
	x, y, w, h := v[0], v[1], v[2], v[3]
	r.moveTo(x, y)
	m := r.gs.ctm
	for _, pt := range [][2]float64{{x + w, y}, {x + w, y + h}, {x, y + h}} {
		px, py := m.Apply(pt[0], pt[1])
		r.path.LineTo(px, py)
	}
	r.path.Close()
	r.curX, r.curY = x, y
	return nil
}

func (r *runner) opClip(contentstream.Operation) error {
	r.clipNext = true
	return nil
}

// paintOp builds the handler of a path painting operator. Even-odd
// operators share the nonzero rasterizer.
func (r *runner) paintOp(fill, stroke, closeFirst bool) contentstream.HandlerFunc {
	return func(contentstream.Operation) error {
		if closeFirst {
			r.path.Close()
		}
		if !r.path.Empty() {
			if fill && !r.gs.fill.pattern {
				r.surface.FillPath(r.path, r.gs.fill.c, r.gs.fillAlpha, r.gs.clip)
			}
			if stroke && !r.gs.stroke.pattern {
				w := r.gs.lineWidth * r.gs.ctm.ScaleFactor()
				r.surface.StrokePath(r.path, w, r.gs.stroke.c, r.gs.strokeAlpha, r.gs.clip)
			}
			if r.clipNext {
				r.gs.clip = intersectClip(r.gs.clip, r.path.Coverage(r.surface.Bounds()))
			}
		}
		r.clipNext = false
		r.path = raster.NewPath()
		return nil
	}
}

func (r *runner) deviceColor(cs *colorSpace, stroke bool) contentstream.HandlerFunc {
	return func(op contentstream.Operation) error {
		v, err := op.Floats(cs.n)
		if err != nil {
			return err
		}
		if stroke {
			r.gs.strokeSpace, r.gs.stroke = cs, cs.paint(v)
		} else {
			r.gs.fillSpace, r.gs.fill = cs, cs.paint(v)
		}
		return nil
	}
}

func (r *runner) opColorSpace(stroke bool) contentstream.HandlerFunc {
	return func(op contentstream.Operation) error {
		name, err := op.Name(0)
		if err != nil {
			return err
		}
		cs, err := r.colorSpaceNamed(name)
		if err != nil {
			return err
		}
		if stroke {
			r.gs.strokeSpace, r.gs.stroke = cs, cs.initial()
		} else {
			r.gs.fillSpace, r.gs.fill = cs, cs.initial()
		}
		return nil
	}
}

func (r *runner) opSetColor(stroke bool) contentstream.HandlerFunc {
	return func(op contentstream.Operation) error {
		comps := op.NumbersOnly()
		if stroke {
			r.gs.stroke = r.gs.strokeSpace.paint(comps)
		} else {
			r.gs.fill = r.gs.fillSpace.paint(comps)
		}
		return nil
	}
}

func (r *runner) colorSpaceNamed(name string) (*colorSpace, error) {
	switch name {
	case "DeviceGray", "G", "CalGray":
		return deviceGray, nil
	case "DeviceRGB", "RGB", "CalRGB":
		return deviceRGB, nil
	case "DeviceCMYK", "CMYK":
		return deviceCMYK, nil
	case "Pattern":
		return patternCS, nil
	}
	obj, err := r.resource("ColorSpace", name)
	if err != nil {
		return nil, err
	}
	return r.colorSpaceOf(obj, 0)
}

// colorSpaceOf resolves a colour space object. Unknown families fall back
// to a space with the same number of components.
func (r *runner) colorSpaceOf(obj types.Object, depth int) (*colorSpace, error) {
	if depth > 4 {
		return nil, fmt.Errorf("colour space nesting too deep")
	}
	obj, err := r.xref.Dereference(obj)
	if err != nil {
		return nil, err
	}
	switch cs := obj.(type) {
	case types.Name:
		return r.colorSpaceNamed(cs.Value())
	case types.Array:
		if len(cs) == 0 {
			return nil, fmt.Errorf("empty colour space array")
		}
		family, _ := cs[0].(types.Name)
		switch family.Value() {
		case "DeviceGray", "CalGray":
			return deviceGray, nil
		case "DeviceRGB", "CalRGB":
			return deviceRGB, nil
		case "DeviceCMYK":
			return deviceCMYK, nil
		case "Lab":
			return &colorSpace{family: csLab, n: 3}, nil
		case "Pattern":
			return patternCS, nil
		case "ICCBased":
			if len(cs) < 2 {
				return deviceRGB, nil
			}
			sd, _, err := r.xref.DereferenceStreamDict(cs[1])
			if err != nil || sd == nil {
				return deviceRGB, nil
			}
			if n := sd.IntEntry("N"); n != nil {
				return byComponents(*n), nil
			}
			return deviceRGB, nil
		case "Separation":
			return &colorSpace{family: csTint, n: 1}, nil
		case "DeviceN":
			n := 1
			if len(cs) > 1 {
				if names, err := r.xref.DereferenceArray(cs[1]); err == nil && len(names) > 0 {
					n = len(names)
				}
			}
			return &colorSpace{family: csTint, n: n}, nil
		case "Indexed", "I":
			if len(cs) < 4 {
				return nil, fmt.Errorf("indexed colour space needs 4 entries")
			}
			base, err := r.colorSpaceOf(cs[1], depth+1)
			if err != nil {
				return nil, err
			}
			hival := 255
			if v, err := r.xref.DereferenceNumber(cs[2]); err == nil {
				hival = int(v)
			}
			lookup, err := r.bytesOf(cs[3])
			if err != nil {
				return nil, err
			}
			return &colorSpace{family: csIndexed, n: 1, base: base, hival: hival, lookup: lookup}, nil
		}
		return nil, fmt.Errorf("unsupported colour space %s", family)
	}
	return nil, fmt.Errorf("colour space is %T", obj)
}

func byComponents(n int) *colorSpace {
	switch n {
	case 1:
		return deviceGray
	case 4:
		return deviceCMYK
	}
	return deviceRGB
}

// bytesOf reads a string or stream object as bytes.
func (r *runner) bytesOf(obj types.Object) ([]byte, error) {
	obj, err := r.xref.Dereference(obj)
	if err != nil {
		return nil, err
	}
	switch v := obj.(type) {
	case types.StringLiteral:
		return types.Unescape(v.Value())
	case types.HexLiteral:
		return v.Bytes()
	case types.StreamDict:
		return document.StreamContent(&v)
	}
	return nil, fmt.Errorf("expected string or stream, got %T", obj)
}

// resource looks name up in the category dictionary of the current
// resources.
func (r *runner) resource(category, name string) (types.Object, error) {
	if r.res == nil {
		return nil, fmt.Errorf("no resources for %s %s", category, name)
	}
	obj, ok := r.res.Find(category)
	if !ok {
		return nil, fmt.Errorf("no %s resources", category)
	}
	d, err := r.xref.DereferenceDict(obj)
	if err != nil || d == nil {
		return nil, fmt.Errorf("%s resources: %v", category, err)
	}
	entry, ok := d.Find(name)
	if !ok || entry == nil {
		return nil, fmt.Errorf("%s %s not found", category, name)
	}
	return entry, nil
}

func (r *runner) number(d types.Dict, key string) (float64, bool) {
	obj, ok := d.Find(key)
	if !ok || obj == nil {
		return 0, false
	}
	v, err := r.xref.DereferenceNumber(obj)
	if err != nil {
		return 0, false
	}
	return v, true
}
