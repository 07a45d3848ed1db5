package pdfimages

import (
	"image"
	"math"
	"sort"
)

const (
	// dimensionTolerance is the relative size difference allowed between a
	// transform and a raw image for them to be considered the same draw.
	dimensionTolerance = 0.05

	// cornerTolerance and centerTolerance bound how far a transform's bounds
	// may sit from the reported bounds, in points.
	cornerTolerance = 50.0
	centerTolerance = 50.0

	// tightCornerTolerance accepts a match on a single corner. Rotated images
	// are often mis-reported everywhere except near one corner.
	tightCornerTolerance = 5.0
)

// resolveTransforms matches the transforms found on a page to its raw images
// and applies each match in place. Candidate pairs are assigned closest
// first, so the result does not depend on image order. Every transform and
// every image is used at most once. It returns the number of images that
// received a transform.
func resolveTransforms(images []*ImageInfo, transforms []ImageTransform) int {
	type candidate struct {
		image, transform int
		score            float64
	}

	var candidates []candidate
	for i, img := range images {
		for j, t := range transforms {
			if !dimensionsMatch(img.Area, t) {
				continue
			}
			if score, ok := positionMatch(img.Area, t.Bounds); ok {
				candidates = append(candidates, candidate{image: i, transform: j, score: score})
			}
		}
	}

	sort.Slice(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.score != cb.score {
			return ca.score < cb.score
		}
		if ia, ib := images[ca.image].ID, images[cb.image].ID; ia != ib {
			return ia < ib
		}
		return ca.transform < cb.transform
	})

	imageDone := make([]bool, len(images))
	transformUsed := make([]bool, len(transforms))
	matched := 0
	for _, c := range candidates {
		if imageDone[c.image] || transformUsed[c.transform] {
			continue
		}
		imageDone[c.image] = true
		transformUsed[c.transform] = true
		applyTransform(images[c.image], transforms[c.transform])
		matched++
	}

	return matched
}

// dimensionsMatch compares the size implied by the transform with the
// reported size, allowing for quarter turns.
func dimensionsMatch(reported Rect, t ImageTransform) bool {
	w, h := reported.Width(), reported.Height()

	if withinTolerance(t.Width, w, dimensionTolerance) && withinTolerance(t.Height, h, dimensionTolerance) {
		return true
	}
	if withinTolerance(t.Width, h, dimensionTolerance) && withinTolerance(t.Height, w, dimensionTolerance) {
		return true
	}

	// Arbitrary rotations: compare the axis-aligned footprints.
	return withinTolerance(t.Bounds.Width(), w, dimensionTolerance) &&
		withinTolerance(t.Bounds.Height(), h, dimensionTolerance)
}

// positionMatch decides whether resolved bounds describe the same placement
// as the reported bounds. The score is the centre distance; lower is better.
func positionMatch(reported, resolved Rect) (float64, bool) {
	rx, ry := reported.Center()
	tx, ty := resolved.Center()
	centerDist := pointDistance(rx, ry, tx, ty)

	rc := reported.corners()
	tc := resolved.corners()

	cornersClose := true
	for i := range rc {
		if pointDistance(rc[i][0], rc[i][1], tc[i][0], tc[i][1]) > cornerTolerance {
			cornersClose = false
			break
		}
	}
	if cornersClose || centerDist <= centerTolerance {
		return centerDist, true
	}

	for i := range rc {
		for j := range tc {
			if pointDistance(rc[i][0], rc[i][1], tc[j][0], tc[j][1]) <= tightCornerTolerance {
				return centerDist, true
			}
		}
	}

	return centerDist, false
}

// applyTransform replaces the image placement with the resolved one and
// attaches clip and soft-mask data.
func applyTransform(img *ImageInfo, t ImageTransform) {
	img.Area = t.Bounds

	norm := t.Matrix.Normalize()
	img.Matrix = &norm

	if t.Width > 0 && t.Height > 0 {
		img.ScaleX = float64(img.PixelWidth()) / t.Width
		img.ScaleY = float64(img.PixelHeight()) / t.Height
	}

	switch {
	case t.ClippedOut:
		img.Hidden = true
	case t.Clip != nil:
		crop, visible := clipToPixels(t.Bounds, *t.Clip, img.PixelWidth(), img.PixelHeight(), norm)
		img.Crop = crop
		img.Hidden = !visible
	}

	if len(t.SoftMask) > 0 {
		img.SoftMask = t.SoftMask
		img.MaskWidth = t.MaskWidth
		img.MaskHeight = t.MaskHeight
		img.HasAlpha = true
	}
}

// clipToPixels converts a page-space clip rectangle into a pixel crop of an
// image placed at bounds. Rotated or mirrored placements are not cropped.
// The crop is nil when the clip does not cut into the image; the boolean is
// false when the clip leaves none of the image visible.
func clipToPixels(bounds, clip Rect, pixelWidth, pixelHeight int, m Matrix) (*image.Rectangle, bool) {
	if bounds.IsEmpty() {
		return nil, true
	}

	visible, ok := bounds.Intersect(clip)
	if !ok {
		return nil, false
	}
	if m.NeedsTransform() {
		return nil, true
	}

	const slack = 0.5
	if visible.X1-bounds.X1 < slack && bounds.X2-visible.X2 < slack &&
		visible.Y1-bounds.Y1 < slack && bounds.Y2-visible.Y2 < slack {
		return nil, true
	}

	sx := float64(pixelWidth) / bounds.Width()
	sy := float64(pixelHeight) / bounds.Height()

	x0 := int(math.Floor((visible.X1 - bounds.X1) * sx))
	x1 := int(math.Ceil((visible.X2 - bounds.X1) * sx))
	y0 := int(math.Floor((bounds.Y2 - visible.Y2) * sy))
	y1 := int(math.Ceil((bounds.Y2 - visible.Y1) * sy))

	crop := image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, pixelWidth, pixelHeight))
	if crop.Empty() {
		return nil, false
	}
	return &crop, true
}
