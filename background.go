package pdfimages

import (
	"github.com/cespare/xxhash/v2"
)

// Signature returns the deduplication key of an image: its pixel size and an
// xxhash of the visible pixel rows. Row padding is excluded so the same image
// extracted with a different stride hashes identically.
func (img *ImageInfo) Signature() ImageSignature {
	s := img.Surface
	sig := ImageSignature{Width: s.Width, Height: s.Height}

	rowBytes := s.Width * s.Format.BytesPerPixel()
	stride := s.Stride
	if stride == 0 {
		stride = rowBytes
	}

	d := xxhash.New()
	for y := 0; y < s.Height; y++ {
		start := y * stride
		end := start + rowBytes
		if rowBytes == 0 || end > len(s.Data) {
			break
		}
		_, _ = d.Write(s.Data[start:end])
	}
	sig.Fingerprint = d.Sum64()

	return sig
}

// pageCoverage returns the fraction of the page covered by the visible part
// of the image.
func pageCoverage(img *ImageInfo) float64 {
	page := img.PageRect()
	pageArea := page.Area()
	if pageArea == 0 {
		return 0
	}
	visible, ok := img.Area.Intersect(page)
	if !ok {
		return 0
	}
	return visible.Area() / pageArea
}

// backgrounds is the outcome of background detection over a document.
type backgrounds struct {
	signatures map[ImageSignature]bool
	keep       map[*ImageInfo]bool // First occurrence of each background signature
}

// isSkipped reports whether img is a repeat of an already extracted background.
func (b backgrounds) isSkipped(img *ImageInfo) bool {
	return img.Background && !b.keep[img]
}

// detectBackgrounds flags images that cover at least minCoverage of their
// page and recur, by signature, on more than one page. Every occurrence is
// flagged; only the first (by page, then drawing order) is kept for output.
// Images must be ordered by page, then ID.
func detectBackgrounds(images []*ImageInfo, minCoverage float64) backgrounds {
	pagesBySig := make(map[ImageSignature]map[int]bool)
	sigs := make(map[*ImageInfo]ImageSignature)

	for _, img := range images {
		img.Background = false
		if pageCoverage(img) < minCoverage {
			continue
		}
		sig := img.Signature()
		sigs[img] = sig
		if pagesBySig[sig] == nil {
			pagesBySig[sig] = make(map[int]bool)
		}
		pagesBySig[sig][img.Page] = true
	}

	result := backgrounds{
		signatures: make(map[ImageSignature]bool),
		keep:       make(map[*ImageInfo]bool),
	}
	for sig, pages := range pagesBySig {
		if len(pages) > 1 {
			result.signatures[sig] = true
		}
	}

	kept := make(map[ImageSignature]bool)
	for _, img := range images {
		sig, ok := sigs[img]
		if !ok || !result.signatures[sig] {
			continue
		}
		img.Background = true
		if !kept[sig] {
			kept[sig] = true
			result.keep[img] = true
		}
	}

	return result
}
