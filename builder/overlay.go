package builder

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/docxform/coords"
)

func init() {
	api.DisableConfigDir()
}

// Overlay draws on top of an existing page of a parsed document.
//
// Its coordinate space is the page as displayed: the origin is the lower
// left corner of the visible box after /Rotate is applied, x grows to the
// right and y upwards, in points. Drawing is collected into a form XObject
// which Commit paints after the original content, isolated by q/Q.
type Overlay struct {
	ctx      *model.Context
	shared   *docResources
	pageDict types.Dict
	pageNr   int
	width    float64
	height   float64
	toUser   coords.Matrix
	canvas   *canvas
}

// NewOverlay prepares an overlay on page pageNr (1-based) of ctx. Several
// overlays may share a document; pass the same Resources to reuse fonts
// and images between them.
func NewOverlay(ctx *model.Context, pageNr int, shared *Resources) (*Overlay, error) {
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, err
	}
	pageDict, _, inh, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return nil, err
	}
	if pageDict == nil || inh == nil {
		return nil, fmt.Errorf("page %d not found", pageNr)
	}
	box := inh.CropBox
	if box == nil || !box.Visible() {
		box = inh.MediaBox
	}
	if box == nil {
		return nil, fmt.Errorf("page %d has no media box", pageNr)
	}
	if shared == nil {
		shared = NewResources(ctx)
	}
	w, h := box.Width(), box.Height()
	toUser, dw, dh := coords.DisplayToUser(w, h, inh.Rotate)
	toUser = toUser.Multiply(coords.Translate(box.LL.X, box.LL.Y))
	return &Overlay{
		ctx:      ctx,
		shared:   shared.r,
		pageDict: pageDict,
		pageNr:   pageNr,
		width:    dw,
		height:   dh,
		toUser:   toUser,
		canvas:   newCanvas(),
	}, nil
}

// Resources shares embedded fonts and images between overlays of one document.
type Resources struct{ r *docResources }

// NewResources returns an empty resource cache for ctx.
func NewResources(ctx *model.Context) *Resources {
	return &Resources{r: newDocResources(ctx.XRefTable)}
}

// Size returns the displayed page size in points.
func (o *Overlay) Size() (width, height float64) { return o.width, o.height }

func (o *Overlay) DrawText(text string, x, y float64, opts TextOptions) *Overlay {
	o.canvas.drawText(text, x, y, opts)
	return o
}

func (o *Overlay) DrawImage(img *Image, x, y, width, height float64, opts ImageOptions) *Overlay {
	o.canvas.drawImage(img, x, y, width, height, opts)
	return o
}

func (o *Overlay) DrawRectangle(x, y, width, height float64, opts RectOptions) *Overlay {
	o.canvas.drawRect(x, y, width, height, opts)
	return o
}

func (o *Overlay) DrawLine(x1, y1, x2, y2 float64, opts LineOptions) *Overlay {
	o.canvas.drawLine(x1, y1, x2, y2, opts)
	return o
}

// Empty reports whether nothing has been drawn.
func (o *Overlay) Empty() bool { return o.canvas.w.Len() == 0 }

// Commit attaches the overlay to the page. An empty overlay is a no-op.
func (o *Overlay) Commit() error {
	if o.canvas.err != nil {
		return o.canvas.err
	}
	if o.Empty() {
		return nil
	}
	res, err := o.canvas.resourceDict(o.shared)
	if err != nil {
		return err
	}
	form, err := o.ctx.NewStreamDictForBuf(o.canvas.w.Bytes())
	if err != nil {
		return err
	}
	form.InsertName("Type", "XObject")
	form.InsertName("Subtype", "Form")
	form.Insert("BBox", types.RectForDim(o.width, o.height).Array())
	form.Insert("Matrix", types.NewNumberArray(o.toUser[:]...))
	form.Insert("Resources", res)
	if err := form.Encode(); err != nil {
		return err
	}
	formRef, err := o.ctx.IndRefForNewObject(*form)
	if err != nil {
		return err
	}
	name, err := o.registerXObject(*formRef)
	if err != nil {
		return err
	}
	return o.wrapContent([]byte("\nQ q /" + name + " Do Q\n"))
}

// registerXObject adds ref to the page's XObject resources under a fresh name.
func (o *Overlay) registerXObject(ref types.IndirectRef) (string, error) {
	resObj, found := o.pageDict.Find("Resources")
	var res types.Dict
	if found {
		d, err := o.ctx.DereferenceDict(resObj)
		if err != nil {
			return "", err
		}
		res = d
	}
	if res == nil {
		_, _, inh, err := o.ctx.PageDict(o.pageNr, false)
		if err != nil {
			return "", err
		}
		res = types.NewDict()
		if inh != nil && inh.Resources != nil {
			res = inh.Resources.Clone().(types.Dict)
		}
		o.pageDict["Resources"] = res
	}
	var xobjs types.Dict
	if obj, ok := res.Find("XObject"); ok {
		d, err := o.ctx.DereferenceDict(obj)
		if err != nil {
			return "", err
		}
		xobjs = d
	}
	if xobjs == nil {
		xobjs = types.NewDict()
		res["XObject"] = xobjs
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("DxOv%d", i)
		if _, taken := xobjs[name]; !taken {
			xobjs[name] = ref
			return name, nil
		}
	}
}

// wrapContent turns the page contents into [q original... tail] so the
// original graphics state cannot leak into tail. Readers concatenate the
// streams without a separator, so head and tail carry their own newlines.
func (o *Overlay) wrapContent(tail []byte) error {
	head, err := o.shared.contentStream([]byte("q\n"))
	if err != nil {
		return err
	}
	end, err := o.shared.contentStream(tail)
	if err != nil {
		return err
	}
	arr := types.Array{*head}
	if obj, ok := o.pageDict.Find("Contents"); ok && obj != nil {
		switch c := obj.(type) {
		case types.IndirectRef:
			d, err := o.ctx.Dereference(c)
			if err != nil {
				return err
			}
			if inner, ok := d.(types.Array); ok {
				arr = append(arr, inner...)
			} else {
				arr = append(arr, c)
			}
		case types.Array:
			arr = append(arr, c...)
		case types.StreamDict:
			ref, err := o.ctx.IndRefForNewObject(c)
			if err != nil {
				return err
			}
			arr = append(arr, *ref)
		}
	}
	arr = append(arr, *end)
	o.pageDict["Contents"] = arr
	return nil
}
