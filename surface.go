package pdfimages

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// ToNRGBA converts a raw surface into a straight-alpha RGBA image.
func (s Surface) ToNRGBA() (*image.NRGBA, error) {
	bpp := s.Format.BytesPerPixel()
	if bpp == 0 {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "format %d", s.Format)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return nil, errors.Errorf("invalid surface size %dx%d", s.Width, s.Height)
	}

	stride := s.Stride
	if stride == 0 {
		stride = s.Width * bpp
	}
	if stride < s.Width*bpp || len(s.Data) < stride*(s.Height-1)+s.Width*bpp {
		return nil, errors.Wrapf(ErrSurfaceTruncated, "%d bytes for %dx%d stride %d", len(s.Data), s.Width, s.Height, stride)
	}

	out := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	for y := 0; y < s.Height; y++ {
		row := s.Data[y*stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < s.Width; x++ {
			src := row[x*bpp:]
			d := dst[x*4 : x*4+4]
			switch s.Format {
			case FormatARGB32:
				b, g, r, a := src[0], src[1], src[2], src[3]
				if a != 0 && a != 255 {
					r = unpremultiply(r, a)
					g = unpremultiply(g, a)
					b = unpremultiply(b, a)
				}
				d[0], d[1], d[2], d[3] = r, g, b, a
			case FormatBGRA:
				d[0], d[1], d[2], d[3] = src[2], src[1], src[0], src[3]
			case FormatRGB24, FormatBGR24:
				d[0], d[1], d[2], d[3] = src[2], src[1], src[0], 255
			case FormatA8:
				d[0], d[1], d[2], d[3] = src[0], src[0], src[0], 255
			}
		}
	}

	return out, nil
}

func unpremultiply(c, a uint8) uint8 {
	v := (int(c)*255 + int(a)/2) / int(a)
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// applySoftMask replaces the alpha channel with the mask values. The mask is
// resampled with Catmull-Rom when its size differs from the image.
func applySoftMask(img *image.NRGBA, mask []byte, maskWidth, maskHeight int) error {
	if maskWidth <= 0 || maskHeight <= 0 || len(mask) < maskWidth*maskHeight {
		return errors.Errorf("invalid soft mask %dx%d with %d bytes", maskWidth, maskHeight, len(mask))
	}

	gray := &image.Gray{
		Pix:    mask[:maskWidth*maskHeight],
		Stride: maskWidth,
		Rect:   image.Rect(0, 0, maskWidth, maskHeight),
	}

	bounds := img.Bounds()
	if maskWidth != bounds.Dx() || maskHeight != bounds.Dy() {
		scaled := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), gray, gray.Bounds(), draw.Src, nil)
		gray = scaled
	}

	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			img.Pix[y*img.Stride+x*4+3] = gray.Pix[y*gray.Stride+x]
		}
	}

	return nil
}

// cropImage returns the part of img inside rect, copied into a new image.
func cropImage(img *image.NRGBA, rect image.Rectangle) *image.NRGBA {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return img
	}

	out := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Copy(out, image.Point{}, img, rect, draw.Src, nil)
	return out
}

// correctOrientation undoes the rotation/mirroring of a normalized placement
// matrix so the pixels appear as they do on the page. The warp happens about
// the image centre, so the absolute placement is not needed. Pixels outside
// the source extent are transparent.
func correctOrientation(img *image.NRGBA, m Matrix) *image.NRGBA {
	if !m.NeedsTransform() {
		return img
	}

	// The matrix maps image space (y-up) to page space (y-up). Pixel rows run
	// y-down on both sides, so conjugate by a vertical flip.
	a, b, c, d := m[0], -m[1], -m[2], m[3]

	sw, sh := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())

	// The canvas covers the warped extent.
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range [4][2]float64{{-sw / 2, -sh / 2}, {sw / 2, -sh / 2}, {sw / 2, sh / 2}, {-sw / 2, sh / 2}} {
		x := a*p[0] + c*p[1]
		y := b*p[0] + d*p[1]
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	dw := int(math.Round(maxX - minX))
	dh := int(math.Round(maxY - minY))
	if dw <= 0 || dh <= 0 {
		return img
	}

	out := image.NewNRGBA(image.Rect(0, 0, dw, dh))

	// Source to destination: shift to the source centre, apply the
	// orientation, then shift to the destination centre.
	cx, cy := float64(dw)/2, float64(dh)/2
	sx, sy := sw/2, sh/2
	s2d := f64.Aff3{
		a, c, cx - a*sx - c*sy,
		b, d, cy - b*sx - d*sy,
	}

	draw.BiLinear.Transform(out, s2d, img, img.Bounds(), draw.Over, nil)
	return out
}

// surfaceFlags reports whether a surface carries alpha and whether it is grayscale.
func surfaceFlags(f SurfaceFormat) (hasAlpha, isGray bool) {
	switch f {
	case FormatARGB32, FormatBGRA:
		return true, false
	case FormatA8:
		return false, true
	default:
		return false, false
	}
}
