package pdfimages

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage describes one page of a fake document.
type fakePage struct {
	boxes    PageBoxes
	images   []RawImage
	texts    []ContentRegion
	paths    []ContentRegion
	imgBoxes []ImageBox
	err      error
}

// fakeDocument implements ImageEnumerator, PageAnalyzer and RegionRenderer.
type fakeDocument struct {
	pages     []fakePage
	renderErr error
	renders   []Rect
}

func (f *fakeDocument) PageCount() int { return len(f.pages) }

func (f *fakeDocument) PageBoxes(page int) (PageBoxes, error) {
	return f.pages[page].boxes, nil
}

func (f *fakeDocument) EnumerateImages(page int) ([]RawImage, error) {
	p := f.pages[page]
	return p.images, p.err
}

func (f *fakeDocument) TextLines(page int) ([]ContentRegion, error) {
	return f.pages[page].texts, nil
}

func (f *fakeDocument) PathRegions(page int) ([]ContentRegion, error) {
	return f.pages[page].paths, nil
}

func (f *fakeDocument) ImageBoxes(page int) ([]ImageBox, error) {
	return f.pages[page].imgBoxes, nil
}

func (f *fakeDocument) RenderRegion(page int, area Rect, dpi float64) (*image.RGBA, error) {
	if f.renderErr != nil {
		return nil, f.renderErr
	}
	f.renders = append(f.renders, area)
	return image.NewRGBA(image.Rect(0, 0, int(area.Width()*dpi/72), int(area.Height()*dpi/72))), nil
}

// fakeInspector returns fixed transforms.
type fakeInspector struct {
	transforms map[int][]ImageTransform
	err        error
}

func (f fakeInspector) PageTransforms() (map[int][]ImageTransform, error) {
	return f.transforms, f.err
}

func letterPage() PageBoxes {
	page := Rect{0, 0, 600, 800}
	return PageBoxes{MediaBox: page, CropBox: page}
}

// rawImage places a w×h pixel image at a page-space rectangle of a 600x800 page.
func rawImage(id int, area Rect, w, h int, seed byte) RawImage {
	return RawImage{ID: id, Box: BoxFromPage(area, 800), Surface: filledSurface(w, h, seed)}
}

func TestEngine_RecurringBackgroundExtractedOnce(t *testing.T) {
	background := Rect{0, 20, 600, 780}

	doc := &fakeDocument{}
	for i := 0; i < 6; i++ {
		p := fakePage{boxes: letterPage()}
		if i%2 == 0 {
			p.images = []RawImage{rawImage(1, background, 60, 80, 5)}
		}
		doc.pages = append(doc.pages, p)
	}

	outputs, metrics, err := NewEngine(DefaultConfig()).Run(Sources{Images: doc, Analyzer: doc, Renderer: doc, LastPage: -1})
	require.NoError(t, err)

	require.Len(t, outputs, 1)
	assert.Equal(t, KindBackground, outputs[0].Kind)
	assert.Equal(t, 1, outputs[0].Page)
	assert.Equal(t, 2, metrics.Statistics.SkippedRepeats)
	assert.Equal(t, 3, metrics.Statistics.SkippedPages, "pages without images are skipped")
	assert.Equal(t, 6, metrics.Statistics.TotalPages)
}

func TestEngine_OverlapGroupRendered(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{{
		boxes: letterPage(),
		images: []RawImage{
			rawImage(1, Rect{0, 0, 100, 100}, 64, 64, 1),
			rawImage(2, Rect{20, 20, 120, 120}, 64, 64, 2),
			rawImage(3, Rect{400, 400, 500, 500}, 64, 64, 3),
		},
		texts: []ContentRegion{{Kind: RegionText, Area: Rect{10, 10, 110, 110}}},
	}}}

	outputs, metrics, err := NewEngine(DefaultConfig()).Run(Sources{Images: doc, Analyzer: doc, Renderer: doc, LastPage: -1})
	require.NoError(t, err)
	require.Len(t, outputs, 4)

	assert.Equal(t, 3, metrics.Statistics.Individual)
	assert.Equal(t, 1, metrics.Statistics.RegionRenders)
	require.Len(t, doc.renders, 1)
	assert.Equal(t, Rect{0, 0, 120, 120}, doc.renders[0])

	assert.True(t, outputs[0].HasRegionRender)
	assert.True(t, outputs[1].HasRegionRender)
	assert.False(t, outputs[2].HasRegionRender)
	assert.Equal(t, KindRegionRender, outputs[3].Kind)
	assert.Equal(t, outputs[0].ID, outputs[3].SourceID)
	assert.Equal(t, 200.0, outputs[3].DPI)
}

func TestEngine_RendererFailureIsNotFatal(t *testing.T) {
	doc := &fakeDocument{
		renderErr: errors.New("out of memory"),
		pages: []fakePage{{
			boxes: letterPage(),
			images: []RawImage{
				rawImage(1, Rect{0, 0, 100, 100}, 64, 64, 1),
				rawImage(2, Rect{20, 20, 120, 120}, 64, 64, 2),
			},
			paths: []ContentRegion{{Kind: RegionPath, Area: Rect{50, 50, 60, 60}}},
		}},
	}

	outputs, metrics, err := NewEngine(DefaultConfig()).Run(Sources{Images: doc, Analyzer: doc, Renderer: doc, LastPage: -1})
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, 1, metrics.Statistics.FailedGroups)
	for _, out := range outputs {
		assert.False(t, out.HasRegionRender)
	}
}

func TestEngine_SmallAndBrokenImagesSkipped(t *testing.T) {
	broken := rawImage(2, Rect{200, 200, 300, 300}, 64, 64, 2)
	broken.Surface.Data = broken.Surface.Data[:100]

	unknown := rawImage(3, Rect{300, 300, 400, 400}, 64, 64, 3)
	unknown.Surface.Format = FormatUnknown

	doc := &fakeDocument{pages: []fakePage{{
		boxes: letterPage(),
		images: []RawImage{
			rawImage(1, Rect{0, 0, 10, 10}, 16, 16, 1),
			broken,
			unknown,
			rawImage(4, Rect{400, 400, 500, 500}, 64, 64, 4),
		},
	}}}

	outputs, metrics, err := NewEngine(DefaultConfig()).Run(Sources{Images: doc, Analyzer: doc, LastPage: -1})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, Rect{400, 400, 500, 500}, outputs[0].Bounds)
	assert.Equal(t, 2, metrics.Statistics.SkippedImages)
}

func TestEngine_EnumerationFailureSkipsPage(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{
		{boxes: letterPage(), err: errors.New("corrupt page")},
		{boxes: letterPage(), images: []RawImage{rawImage(1, Rect{0, 0, 100, 100}, 64, 64, 1)}},
	}}

	outputs, metrics, err := NewEngine(DefaultConfig()).Run(Sources{Images: doc, Analyzer: doc, LastPage: -1})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, 2, outputs[0].Page)
	assert.Equal(t, 1, metrics.Statistics.SkippedPages)
}

func TestEngine_TransformsResolvedAndBoundsCorrected(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{{
		boxes: letterPage(),
		images: []RawImage{
			// Reported as a quarter-turned footprint.
			rawImage(1, Rect{200, 100, 300, 300}, 80, 40, 1),
			// Reported far off the page.
			rawImage(2, Rect{5000, 5000, 5100, 5100}, 64, 64, 2),
		},
		imgBoxes: []ImageBox{{Width: 64, Height: 64, Area: Rect{400, 400, 500, 500}}},
	}}}

	inspector := fakeInspector{transforms: map[int][]ImageTransform{
		0: {newImageTransform(drawOp{Name: "Im0", CTM: Matrix{0, 200, -100, 0, 300, 100}})},
	}}

	outputs, metrics, err := NewEngine(DefaultConfig()).Run(Sources{
		Images: doc, Analyzer: doc, Inspector: inspector, LastPage: -1,
	})
	require.NoError(t, err)
	require.Len(t, outputs, 2)

	assert.Equal(t, 1, metrics.Statistics.ResolvedTransforms)
	assert.Equal(t, 1, metrics.Statistics.CorrectedBounds)

	// The rotated image is delivered upright.
	assert.Equal(t, image.Rect(0, 0, 40, 80), outputs[0].Image.Bounds())
	assert.Equal(t, Rect{400, 400, 500, 500}, outputs[1].Bounds)
}

func TestEngine_ClippedOutPageSkipped(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{
		{boxes: letterPage(), images: []RawImage{rawImage(1, Rect{100, 100, 200, 200}, 64, 64, 1)}},
		{boxes: letterPage(), images: []RawImage{rawImage(1, Rect{100, 100, 200, 200}, 64, 64, 2)}},
	}}

	inspector := fakeInspector{transforms: map[int][]ImageTransform{
		0: {newImageTransform(drawOp{Name: "Im0", CTM: Matrix{100, 0, 0, 100, 100, 100}, ClippedOut: true})},
	}}

	outputs, metrics, err := NewEngine(DefaultConfig()).Run(Sources{
		Images: doc, Analyzer: doc, Inspector: inspector, LastPage: -1,
	})
	require.NoError(t, err)

	require.Len(t, outputs, 1)
	assert.Equal(t, 2, outputs[0].Page)
	assert.Equal(t, 1, metrics.Statistics.SkippedImages)
	assert.Equal(t, 1, metrics.Statistics.SkippedPages)
}

func TestEngine_InspectorFailureDegrades(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{{
		boxes:  letterPage(),
		images: []RawImage{rawImage(1, Rect{0, 0, 100, 100}, 64, 64, 1)},
	}}}

	outputs, _, err := NewEngine(DefaultConfig()).Run(Sources{
		Images: doc, Analyzer: doc, Inspector: fakeInspector{err: errors.New("xref broken")}, LastPage: -1,
	})
	require.NoError(t, err)
	assert.Len(t, outputs, 1)
}

func TestEngine_PageRangeAndProgress(t *testing.T) {
	doc := &fakeDocument{}
	for i := 0; i < 5; i++ {
		doc.pages = append(doc.pages, fakePage{
			boxes:  letterPage(),
			images: []RawImage{rawImage(1, Rect{0, 0, 100, 100}, 64, 64, byte(i))},
		})
	}

	var progress [][2]int
	cfg := DefaultConfig()
	cfg.Progress = func(done, total int) {
		progress = append(progress, [2]int{done, total})
	}

	outputs, _, err := NewEngine(cfg).Run(Sources{Images: doc, Analyzer: doc, FirstPage: 1, LastPage: 3})
	require.NoError(t, err)
	require.Len(t, outputs, 3)
	assert.Equal(t, 2, outputs[0].Page)
	assert.Equal(t, 4, outputs[2].Page)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
}

func TestEngine_RequiresCollaborators(t *testing.T) {
	_, _, err := NewEngine(DefaultConfig()).Run(Sources{})
	assert.Error(t, err)
}
