package pdfimages

import (
	"image"
	"math"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// visibleArea returns the page area covered by the converted pixels of img,
// accounting for a clip crop.
func visibleArea(img *ImageInfo) Rect {
	if img.Crop == nil || img.PixelWidth() == 0 || img.PixelHeight() == 0 {
		return img.Area
	}
	sx := img.Area.Width() / float64(img.PixelWidth())
	sy := img.Area.Height() / float64(img.PixelHeight())
	c := *img.Crop
	return Rect{
		X1: img.Area.X1 + float64(c.Min.X)*sx,
		Y1: img.Area.Y2 - float64(c.Max.Y)*sy,
		X2: img.Area.X1 + float64(c.Max.X)*sx,
		Y2: img.Area.Y2 - float64(c.Min.Y)*sy,
	}
}

// composeGroup flattens the members of a group onto one canvas covering the
// group bounds at dpi, blending with Porter-Duff "over" in drawing order.
// Text and vector content are not part of the result; it stands in for a
// region render when no renderer is available.
func composeGroup(group OverlapGroup, images []*ImageInfo, dpi float64) (*image.RGBA, error) {
	scale := dpi / 72
	bounds := group.Bounds
	w := int(math.Ceil(bounds.Width() * scale))
	h := int(math.Ceil(bounds.Height() * scale))
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("empty group bounds %v", bounds)
	}

	members := append([]int(nil), group.Members...)
	sort.Slice(members, func(i, j int) bool {
		return images[members[i]].ID < images[members[j]].ID
	})

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	drawn := 0
	for _, idx := range members {
		img := images[idx]
		pixels, err := convertImage(img, 0)
		if err != nil {
			continue
		}

		area := visibleArea(img)
		dst := image.Rect(
			int(math.Round((area.X1-bounds.X1)*scale)),
			int(math.Round((bounds.Y2-area.Y2)*scale)),
			int(math.Round((area.X2-bounds.X1)*scale)),
			int(math.Round((bounds.Y2-area.Y1)*scale)),
		)
		if dst.Empty() {
			continue
		}

		draw.CatmullRom.Scale(canvas, dst, pixels, pixels.Bounds(), draw.Over, nil)
		drawn++
	}

	if drawn == 0 {
		return nil, errors.New("no group member could be composited")
	}
	return canvas, nil
}
