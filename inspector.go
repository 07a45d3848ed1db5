package pdfimages

import (
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// maxFormDepth bounds Form XObject recursion; some producers nest forms in cycles.
const maxFormDepth = 12

// TransformInspector resolves image placements from the document's content streams.
type TransformInspector interface {
	// PageTransforms returns resolved image transforms keyed by 0-based page index.
	PageTransforms() (map[int][]ImageTransform, error)
}

// ContentInspector is a TransformInspector backed by pdfcpu.
type ContentInspector struct {
	ctx    *model.Context
	logger zerolog.Logger
}

// NewContentInspector reads the PDF at path with pdfcpu.
func NewContentInspector(path string, logger zerolog.Logger) (*ContentInspector, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read PDF context")
	}
	return newContentInspector(ctx, logger)
}

// NewContentInspectorFromReader reads a PDF from rs with pdfcpu.
func NewContentInspectorFromReader(rs io.ReadSeeker, logger zerolog.Logger) (*ContentInspector, error) {
	ctx, err := api.ReadContext(rs, model.NewDefaultConfiguration())
	if err != nil {
		return nil, errors.Wrap(err, "failed to read PDF context")
	}
	return newContentInspector(ctx, logger)
}

// newContentInspector resolves the page count, which reading alone leaves unset.
func newContentInspector(ctx *model.Context, logger zerolog.Logger) (*ContentInspector, error) {
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, errors.Wrap(err, "failed to ensure page count")
	}
	return &ContentInspector{ctx: ctx, logger: logger}, nil
}

// PageTransforms walks every page content stream and every Form XObject
// reachable from it, collecting one ImageTransform per image draw.
func (ci *ContentInspector) PageTransforms() (map[int][]ImageTransform, error) {
	result := make(map[int][]ImageTransform, ci.ctx.PageCount)

	for pageNr := 1; pageNr <= ci.ctx.PageCount; pageNr++ {
		transforms, err := ci.pageTransforms(pageNr)
		if err != nil {
			ci.logger.Warn().Err(err).Int("page", pageNr).Msg("skipping content stream")
			continue
		}
		if len(transforms) > 0 {
			result[pageNr-1] = transforms
		}
	}

	return result, nil
}

func (ci *ContentInspector) pageTransforms(pageNr int) ([]ImageTransform, error) {
	pageDict, _, _, err := ci.ctx.PageDict(pageNr, true)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get page dict")
	}
	if pageDict == nil {
		return nil, errors.New("page dict not found")
	}

	contents, found := pageDict.Find("Contents")
	if !found {
		return nil, nil
	}

	streams, err := ci.contentStreams(contents)
	if err != nil {
		return nil, err
	}

	var resources types.Dict
	if res, found := pageDict.Find("Resources"); found {
		resources = ci.dict(res)
	}

	var transforms []ImageTransform
	for _, data := range streams {
		transforms = append(transforms, ci.walk(data, resources, graphicsState{ctm: Identity()}, 0)...)
	}
	return transforms, nil
}

// walk interprets one content stream, recursing into Form XObjects.
func (ci *ContentInspector) walk(data []byte, resources types.Dict, start graphicsState, depth int) []ImageTransform {
	xobjects := ci.dict(lookup(resources, "XObject"))

	var transforms []ImageTransform
	walkContentStream(data, start, func(op drawOp) {
		obj, found := xobjects[op.Name]
		if !found {
			if looksLikeImageName(op.Name) {
				transforms = append(transforms, newImageTransform(op))
			}
			return
		}

		sd, err := ci.streamDict(obj)
		if err != nil {
			ci.logger.Debug().Err(err).Str("xobject", op.Name).Msg("unresolvable xobject")
			return
		}

		switch nameValue(ci.deref(lookup(sd.Dict, "Subtype"))) {
		case "Image":
			t := newImageTransform(op)
			ci.attachSoftMask(&t, sd)
			transforms = append(transforms, t)
		case "Form":
			if depth >= maxFormDepth {
				return
			}
			transforms = append(transforms, ci.walkForm(sd, op, resources, depth)...)
		}
	})

	return transforms
}

// walkForm interprets a Form XObject drawn by op.
func (ci *ContentInspector) walkForm(sd *types.StreamDict, op drawOp, parent types.Dict, depth int) []ImageTransform {
	if err := decodeStream(sd); err != nil {
		ci.logger.Debug().Err(err).Str("xobject", op.Name).Msg("undecodable form")
		return nil
	}

	formMatrix := Identity()
	if m, ok := matrixValue(ci.deref(lookup(sd.Dict, "Matrix"))); ok {
		formMatrix = m
	}
	state := graphicsState{
		ctm:        formMatrix.Multiply(op.CTM),
		clip:       op.Clip,
		clippedOut: op.ClippedOut,
	}

	// The form BBox clips its content.
	if bbox, ok := rectValue(ci.deref(lookup(sd.Dict, "BBox"))); ok {
		state.intersectClip(state.ctm.TransformRect(bbox))
	}

	resources := parent
	if res, found := sd.Find("Resources"); found {
		if d := ci.dict(res); d != nil {
			resources = d
		}
	}

	return ci.walk(sd.Content, resources, state, depth+1)
}

// attachSoftMask loads the image's /SMask, if any, as 8-bit gray.
func (ci *ContentInspector) attachSoftMask(t *ImageTransform, image *types.StreamDict) {
	obj, found := image.Find("SMask")
	if !found {
		return
	}
	if nameValue(obj) == "None" {
		return
	}

	mask, err := ci.streamDict(obj)
	if err != nil {
		return
	}
	if err := decodeStream(mask); err != nil {
		ci.logger.Debug().Err(err).Str("xobject", t.Name).Msg("undecodable soft mask")
		return
	}

	w, okW := intValue(ci.deref(lookup(mask.Dict, "Width")))
	h, okH := intValue(ci.deref(lookup(mask.Dict, "Height")))
	if !okW || !okH || w <= 0 || h <= 0 {
		return
	}
	bpc, ok := intValue(ci.deref(lookup(mask.Dict, "BitsPerComponent")))
	if !ok {
		bpc = 8
	}

	samples, ok := maskSamples(mask.Content, w, h, bpc)
	if !ok {
		ci.logger.Debug().Str("xobject", t.Name).Int("bpc", bpc).Int("bytes", len(mask.Content)).Msg("unusable soft mask")
		return
	}

	t.SoftMask = samples
	t.MaskWidth = w
	t.MaskHeight = h
}

// maskSamples converts decoded soft-mask samples of the given bit depth to
// one byte per pixel. Rows of sub-byte samples are padded to a whole byte;
// 16-bit samples keep their high byte.
func maskSamples(data []byte, w, h, bpc int) ([]byte, bool) {
	switch bpc {
	case 8:
		if len(data) < w*h {
			return nil, false
		}
		return data[:w*h], true

	case 16:
		if len(data) < w*h*2 {
			return nil, false
		}
		out := make([]byte, w*h)
		for i := range out {
			out[i] = data[2*i]
		}
		return out, true

	case 1, 2, 4:
		rowBytes := (w*bpc + 7) / 8
		if len(data) < rowBytes*h {
			return nil, false
		}
		maxVal := 1<<bpc - 1
		out := make([]byte, w*h)
		for y := 0; y < h; y++ {
			row := data[y*rowBytes:]
			for x := 0; x < w; x++ {
				bit := x * bpc
				v := int(row[bit/8]) >> (8 - bpc - bit%8) & maxVal
				out[y*w+x] = byte(v * 255 / maxVal)
			}
		}
		return out, true
	}

	return nil, false
}

// contentStreams returns the decoded bytes of a page's /Contents entry.
func (ci *ContentInspector) contentStreams(contents types.Object) ([][]byte, error) {
	var streams [][]byte

	switch obj := contents.(type) {
	case types.IndirectRef, *types.IndirectRef:
		deref, err := ci.ctx.Dereference(obj)
		if err != nil {
			return nil, errors.Wrap(err, "failed to dereference contents")
		}
		return ci.contentStreams(deref)

	case types.StreamDict:
		if err := decodeStream(&obj); err != nil {
			return nil, err
		}
		if len(obj.Content) > 0 {
			streams = append(streams, obj.Content)
		}

	case types.Array:
		for _, item := range obj {
			itemStreams, err := ci.contentStreams(item)
			if err != nil {
				ci.logger.Debug().Err(err).Msg("skipping content stream part")
				continue
			}
			streams = append(streams, itemStreams...)
		}
	}

	return streams, nil
}

func (ci *ContentInspector) streamDict(obj types.Object) (*types.StreamDict, error) {
	sd, _, err := ci.ctx.DereferenceStreamDict(obj)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dereference stream")
	}
	if sd == nil {
		return nil, errors.New("object is not a stream")
	}
	return sd, nil
}

func (ci *ContentInspector) deref(obj types.Object) types.Object {
	if obj == nil {
		return nil
	}
	out, err := ci.ctx.Dereference(obj)
	if err != nil {
		return nil
	}
	return out
}

func (ci *ContentInspector) dict(obj types.Object) types.Dict {
	if d, ok := ci.deref(obj).(types.Dict); ok {
		return d
	}
	return nil
}

func decodeStream(sd *types.StreamDict) error {
	if len(sd.Content) == 0 && len(sd.Raw) > 0 {
		if err := sd.Decode(); err != nil {
			return errors.Wrap(err, "failed to decode stream")
		}
	}
	return nil
}

func lookup(d types.Dict, key string) types.Object {
	if d == nil {
		return nil
	}
	obj, found := d.Find(key)
	if !found {
		return nil
	}
	return obj
}

func nameValue(obj types.Object) string {
	if name, ok := obj.(types.Name); ok {
		return string(name)
	}
	return ""
}

func numberValue(obj types.Object) (float64, bool) {
	switch v := obj.(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	}
	return 0, false
}

func intValue(obj types.Object) (int, bool) {
	v, ok := numberValue(obj)
	return int(v), ok
}

func numbersValue(obj types.Object, n int) ([]float64, bool) {
	arr, ok := obj.(types.Array)
	if !ok || len(arr) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, item := range arr {
		v, ok := numberValue(item)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func matrixValue(obj types.Object) (Matrix, bool) {
	v, ok := numbersValue(obj, 6)
	if !ok {
		return Matrix{}, false
	}
	return Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}, true
}

func rectValue(obj types.Object) (Rect, bool) {
	v, ok := numbersValue(obj, 4)
	if !ok {
		return Rect{}, false
	}
	return NewRect(v[0], v[1], v[2], v[3]), true
}
