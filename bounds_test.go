package pdfimages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrectBounds_CropOffset(t *testing.T) {
	img := newTestImage(1, Rect{-50, 0, 150, 100}, 400, 200)
	img.PageWidth, img.PageHeight = 200, 300

	boxes := PageBoxes{
		MediaBox: Rect{0, 0, 250, 300},
		CropBox:  Rect{50, 0, 250, 300},
	}

	applied := correctBounds([]*ImageInfo{img}, boxes, nil, 0.1)
	require.Len(t, applied, 1)
	assert.Equal(t, correctionCropOffset, applied[0])
	assert.Equal(t, Rect{0, 0, 200, 100}, img.Area)
	assert.True(t, isValidBounds(img.Area, 200, 300, 0.1))
}

func TestCorrectBounds_ValidBoundsUntouched(t *testing.T) {
	img := newTestImage(1, Rect{-10, -10, 210, 100}, 400, 200)
	img.PageWidth, img.PageHeight = 200, 300

	applied := correctBounds([]*ImageInfo{img}, PageBoxes{MediaBox: Rect{0, 0, 200, 300}, CropBox: Rect{0, 0, 200, 300}}, nil, 0.1)
	assert.Equal(t, correctionNone, applied[0])
	assert.Equal(t, Rect{-10, -10, 210, 100}, img.Area)
}

func TestCorrectBounds_RendererBox(t *testing.T) {
	img := newTestImage(1, Rect{1000, 1000, 1200, 1100}, 400, 200)
	other := newTestImage(2, Rect{2000, 2000, 2100, 2100}, 400, 200)
	for _, i := range []*ImageInfo{img, other} {
		i.PageWidth, i.PageHeight = 612, 792
	}

	page := Rect{0, 0, 612, 792}
	rendererBoxes := []ImageBox{
		{Width: 100, Height: 100, Area: Rect{0, 0, 50, 50}},
		{Width: 401, Height: 201, Area: Rect{100, 100, 300, 200}},
		{Width: 400, Height: 200, Area: Rect{300, 300, 500, 400}},
	}

	applied := correctBounds([]*ImageInfo{img, other}, PageBoxes{MediaBox: page, CropBox: page}, rendererBoxes, 0.1)

	assert.Equal(t, []boundsCorrection{correctionRendererBox, correctionRendererBox}, applied)
	assert.Equal(t, Rect{100, 100, 300, 200}, img.Area)
	assert.Equal(t, Rect{300, 300, 500, 400}, other.Area, "a renderer box is consumed by its first match")
}

func TestCorrectBounds_FullPageFallback(t *testing.T) {
	img := newTestImage(1, Rect{5000, 5000, 5200, 5100}, 400, 200)
	page := Rect{0, 0, 612, 792}

	rendererBoxes := []ImageBox{
		{Width: 410, Height: 200, Area: Rect{100, 100, 300, 200}},
		{Width: 400, Height: 200, Area: Rect{-900, 100, 300, 200}},
	}

	applied := correctBounds([]*ImageInfo{img}, PageBoxes{MediaBox: page, CropBox: page}, rendererBoxes, 0.1)
	assert.Equal(t, correctionFullPage, applied[0])
	assert.Equal(t, page, img.Area)
}

func TestCorrectBounds_AlwaysEndsValid(t *testing.T) {
	page := Rect{0, 0, 612, 792}
	areas := []Rect{
		{-1000, -1000, -900, -900},
		{0, 0, 0, 0},
		{600, 780, 5000, 5000},
		{-200, 0, 400, 100},
		{100, 100, 100, 500},
	}

	for _, area := range areas {
		img := newTestImage(1, area, 64, 64)
		correctBounds([]*ImageInfo{img}, PageBoxes{MediaBox: page, CropBox: Rect{30, 0, 642, 792}}, nil, 0.1)
		assert.True(t, isValidBounds(img.Area, img.PageWidth, img.PageHeight, 0.1), "area %v ended as %v", area, img.Area)
	}
}
