package pdfimages

import (
	"image"
)

// ImageEnumerator lists the raw embedded images of a page.
type ImageEnumerator interface {
	// EnumerateImages returns the images of a 0-based page with their
	// reported bounds and pixel surfaces.
	EnumerateImages(page int) ([]RawImage, error)
}

// PageAnalyzer reports page geometry and the non-image content of a page.
type PageAnalyzer interface {
	// PageCount returns the number of pages in the document.
	PageCount() int

	// PageBoxes returns the MediaBox and CropBox of a 0-based page.
	PageBoxes(page int) (PageBoxes, error)

	// TextLines returns line-level text regions in page coordinates.
	TextLines(page int) ([]ContentRegion, error)

	// PathRegions returns vector path and form footprints in page
	// coordinates, clipped to the page.
	PathRegions(page int) ([]ContentRegion, error)

	// ImageBoxes returns the renderer's own list of image bounds, used
	// only to repair invalid bounds.
	ImageBoxes(page int) ([]ImageBox, error)
}

// RegionRenderer rasterizes a sub-rectangle of a page.
type RegionRenderer interface {
	// RenderRegion renders area (page coordinates) of a 0-based page at dpi.
	RenderRegion(page int, area Rect, dpi float64) (*image.RGBA, error)
}

// Sources bundles the collaborators the engine reads from.
type Sources struct {
	Images    ImageEnumerator
	Analyzer  PageAnalyzer
	Renderer  RegionRenderer     // Optional; groups are composited from their images without it
	Inspector TransformInspector // Optional; images keep their reported bounds without it

	// FirstPage and LastPage restrict extraction to a 0-based inclusive
	// range. LastPage < 0 means the last page of the document.
	FirstPage int
	LastPage  int
}

// pageRange resolves the inclusive page range to process.
func (s Sources) pageRange() (int, int) {
	count := s.Analyzer.PageCount()
	first, last := s.FirstPage, s.LastPage
	if first < 0 {
		first = 0
	}
	if last < 0 || last >= count {
		last = count - 1
	}
	return first, last
}
