package pdfimages

// boundsCorrection records which fallback repaired an image's bounds.
type boundsCorrection int

const (
	correctionNone boundsCorrection = iota
	correctionCropOffset
	correctionRendererBox
	correctionFullPage
)

func (c boundsCorrection) String() string {
	switch c {
	case correctionCropOffset:
		return "crop_offset"
	case correctionRendererBox:
		return "renderer_box"
	case correctionFullPage:
		return "full_page"
	default:
		return "none"
	}
}

// maxPixelSizeDelta is the largest combined width+height difference, in
// pixels, for a renderer image box to be taken as the same image.
const maxPixelSizeDelta = 3

// isValidBounds reports whether r is a plausible placement on a page of the
// given size, allowing it to extend past each edge by margin × page size.
func isValidBounds(r Rect, pageWidth, pageHeight, margin float64) bool {
	if r.IsEmpty() {
		return false
	}
	mx, my := pageWidth*margin, pageHeight*margin
	n := r.Normalize()
	return n.X1 >= -mx && n.Y1 >= -my && n.X2 <= pageWidth+mx && n.Y2 <= pageHeight+my
}

// correctBounds repairs every image on a page whose placement is invalid.
// The crop-box offset is tried first, then an unused renderer image box of
// matching pixel size, then the full page. The returned slice holds the
// correction applied to each image.
func correctBounds(images []*ImageInfo, boxes PageBoxes, rendererBoxes []ImageBox, margin float64) []boundsCorrection {
	consumed := make([]bool, len(rendererBoxes))
	applied := make([]boundsCorrection, len(images))

	for i, img := range images {
		if isValidBounds(img.Area, img.PageWidth, img.PageHeight, margin) {
			continue
		}
		applied[i] = correctImageBounds(img, boxes, rendererBoxes, consumed, margin)
	}

	return applied
}

func correctImageBounds(img *ImageInfo, boxes PageBoxes, rendererBoxes []ImageBox, consumed []bool, margin float64) boundsCorrection {
	if dx, dy := boxes.CropOffset(); dx != 0 || dy != 0 {
		shifted := img.Area.Translate(dx, dy)
		if isValidBounds(shifted, img.PageWidth, img.PageHeight, margin) {
			img.Area = shifted
			return correctionCropOffset
		}
	}

	for j, box := range rendererBoxes {
		if consumed[j] {
			continue
		}
		delta := abs(box.Width-img.PixelWidth()) + abs(box.Height-img.PixelHeight())
		if delta >= maxPixelSizeDelta {
			continue
		}
		if !isValidBounds(box.Area, img.PageWidth, img.PageHeight, margin) {
			continue
		}
		consumed[j] = true
		img.Area = box.Area
		return correctionRendererBox
	}

	img.Area = img.PageRect()
	return correctionFullPage
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
