package pdfimages

import (
	"image"
)

// SurfaceFormat identifies the pixel layout of a raw image surface.
type SurfaceFormat int

const (
	// FormatUnknown is an unrecognised layout; such surfaces are skipped.
	FormatUnknown SurfaceFormat = iota
	// FormatARGB32 is 32 bits per pixel, premultiplied alpha, bytes B,G,R,A.
	FormatARGB32
	// FormatBGRA is 32 bits per pixel, straight alpha, bytes B,G,R,A.
	FormatBGRA
	// FormatRGB24 is 32 bits per pixel with the fourth byte unused, bytes B,G,R,x.
	FormatRGB24
	// FormatBGR24 is packed 24 bits per pixel, bytes B,G,R.
	FormatBGR24
	// FormatA8 is 8 bits per pixel grayscale.
	FormatA8
)

func (f SurfaceFormat) String() string {
	switch f {
	case FormatARGB32:
		return "argb32"
	case FormatBGRA:
		return "bgra"
	case FormatRGB24:
		return "rgb24"
	case FormatBGR24:
		return "bgr24"
	case FormatA8:
		return "a8"
	default:
		return "unknown"
	}
}

// BytesPerPixel returns the number of bytes one pixel occupies in a row.
func (f SurfaceFormat) BytesPerPixel() int {
	switch f {
	case FormatARGB32, FormatBGRA, FormatRGB24:
		return 4
	case FormatBGR24:
		return 3
	case FormatA8:
		return 1
	default:
		return 0
	}
}

// Surface is a raw pixel buffer with a y-down origin.
type Surface struct {
	Format SurfaceFormat
	Width  int
	Height int
	Stride int
	Data   []byte
}

// RawImage is one embedded image occurrence as reported by an ImageEnumerator.
type RawImage struct {
	ID      int // Drawing order on the page, lower is drawn first
	Box     Box // Reported bounds, top-left origin
	Surface Surface
}

// ImageInfo is one raw embedded image occurrence flowing through the pipeline.
type ImageInfo struct {
	ID         int  // Source image identifier, also the z-order on its page
	Area       Rect // Placement on the page
	Surface    Surface
	HasAlpha   bool
	IsGray     bool
	ScaleX     float64 // Pixels per point, horizontal
	ScaleY     float64 // Pixels per point, vertical
	Page       int     // 0-based page index
	PageWidth  float64
	PageHeight float64

	// Set by transform resolution.
	Matrix     *Matrix          // Normalized rotation/mirror matrix
	Crop       *image.Rectangle // Pixel-space crop derived from the clip
	Hidden     bool             // Clipped away entirely
	SoftMask   []byte
	MaskWidth  int
	MaskHeight int

	// Set by background detection.
	Background bool
}

// PixelWidth returns the width of the image in pixels.
func (img *ImageInfo) PixelWidth() int {
	return img.Surface.Width
}

// PixelHeight returns the height of the image in pixels.
func (img *ImageInfo) PixelHeight() int {
	return img.Surface.Height
}

// PageRect returns the full page rectangle the image sits on.
func (img *ImageInfo) PageRect() Rect {
	return Rect{X1: 0, Y1: 0, X2: img.PageWidth, Y2: img.PageHeight}
}

// RegionKind distinguishes text lines from vector content.
type RegionKind int

const (
	RegionText RegionKind = iota
	RegionPath
)

// ContentRegion is the footprint of a merged text line or a vector path/form.
type ContentRegion struct {
	Kind RegionKind
	Area Rect
}

// ImageTransform is the resolved placement of one image draw operation.
type ImageTransform struct {
	Name       string
	Matrix     Matrix // Full CTM at the time of the draw
	Width      float64
	Height     float64
	Bounds     Rect
	Clip       *Rect
	ClippedOut bool // The clip in effect leaves nothing visible
	SoftMask   []byte
	MaskWidth  int
	MaskHeight int
}

// ImageSignature identifies identical image content across pages.
type ImageSignature struct {
	Width       int
	Height      int
	Fingerprint uint64
}

// OverlapGroup is a set of images on one page that share a composited output.
type OverlapGroup struct {
	Page    int
	Members []int // Indices into the page's image slice
	Bounds  Rect
	HasText bool
	HasPath bool
}

// PageBoxes holds the page boundary rectangles in default user space.
type PageBoxes struct {
	MediaBox Rect
	CropBox  Rect
}

// Width returns the visible page width.
func (p PageBoxes) Width() float64 {
	return p.CropBox.Width()
}

// Height returns the visible page height.
func (p PageBoxes) Height() float64 {
	return p.CropBox.Height()
}

// CropOffset returns the translation from the MediaBox origin to the CropBox origin.
func (p PageBoxes) CropOffset() (float64, float64) {
	return p.CropBox.X1 - p.MediaBox.X1, p.CropBox.Y1 - p.MediaBox.Y1
}

// ImageBox is an image bounding box reported independently by the renderer.
type ImageBox struct {
	Width  int // Pixel width
	Height int // Pixel height
	Area   Rect
}

// OutputKind classifies an output image.
type OutputKind int

const (
	KindIndividual OutputKind = iota
	KindBackground
	KindRegionRender
)

func (k OutputKind) String() string {
	switch k {
	case KindBackground:
		return "background"
	case KindRegionRender:
		return "region"
	default:
		return "individual"
	}
}

// OutputImage is one final extracted image handed to a sink.
type OutputImage struct {
	ID              string
	Page            int // 1-based page number
	Index           int // 0-based index within the page
	Image           image.Image
	Kind            OutputKind
	SourceID        string // Constituent individual image, for region renders
	HasRegionRender bool
	Bounds          Rect
	DPI             float64
}
