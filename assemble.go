package pdfimages

import (
	"image"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// minRenderDPI is the lowest DPI a region is ever rendered at.
const minRenderDPI = 72.0

// nativeDPI returns the resolution an image was embedded at: the larger of
// its horizontal and vertical pixel densities over its placed size.
func nativeDPI(img *ImageInfo) float64 {
	w, h := img.Area.Width(), img.Area.Height()
	var dpi float64
	if w > 0 {
		dpi = math.Max(dpi, float64(img.PixelWidth())/(w/72))
	}
	if h > 0 {
		dpi = math.Max(dpi, float64(img.PixelHeight())/(h/72))
	}
	return dpi
}

// computeRenderDPI picks the resolution for a region render: the highest
// native DPI among the members capped at maxDPI, raised to minTextDPI when
// the group overlaps text or vector content.
func computeRenderDPI(group OverlapGroup, images []*ImageInfo, minTextDPI, maxDPI float64) float64 {
	var dpi float64
	for _, idx := range group.Members {
		dpi = math.Max(dpi, nativeDPI(images[idx]))
	}
	if maxDPI > 0 && dpi > maxDPI {
		dpi = maxDPI
	}
	if group.HasText || group.HasPath {
		dpi = math.Max(dpi, minTextDPI)
	}
	return math.Max(dpi, minRenderDPI)
}

// convertImage turns a resolved image into its final pixels: surface
// conversion, soft mask, clip crop and orientation correction.
func convertImage(img *ImageInfo, minSize int) (*image.NRGBA, error) {
	if img.Hidden {
		return nil, ErrImageClipped
	}

	out, err := img.Surface.ToNRGBA()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert surface")
	}

	if len(img.SoftMask) > 0 {
		if err := applySoftMask(out, img.SoftMask, img.MaskWidth, img.MaskHeight); err != nil {
			return nil, errors.Wrap(err, "failed to apply soft mask")
		}
	}

	if img.Crop != nil {
		out = cropImage(out, *img.Crop)
	}

	if img.Matrix != nil {
		out = correctOrientation(out, *img.Matrix)
	}

	b := out.Bounds()
	if b.Dx() < minSize || b.Dy() < minSize {
		return nil, errors.Wrapf(ErrImageTooSmall, "%dx%d", b.Dx(), b.Dy())
	}

	return out, nil
}

// pageStats counts what happened to the images of one page.
type pageStats struct {
	Individual     int
	Backgrounds    int
	RegionRenders  int
	SkippedImages  int
	SkippedRepeats int
	FailedGroups   int
}

// assembler builds the output records of a page.
type assembler struct {
	cfg      Config
	renderer RegionRenderer
	bg       backgrounds
}

// assemblePage produces the output records of one page: every surviving
// image as an individual (or background) output, followed by one region
// render per overlap group. Members of a successfully rendered group are
// flagged with HasRegionRender.
func (a *assembler) assemblePage(page int, images []*ImageInfo, groups []OverlapGroup) ([]OutputImage, pageStats) {
	var stats pageStats
	var outputs []OutputImage
	logger := a.cfg.Logger.With().Int("page", page+1).Logger()

	// Image index to position in outputs.
	individual := make(map[int]int)

	for i, img := range images {
		if a.bg.isSkipped(img) {
			stats.SkippedRepeats++
			continue
		}

		pixels, err := convertImage(img, a.cfg.MinImageSize)
		if err != nil {
			stats.SkippedImages++
			logger.Warn().Err(err).Int("image", img.ID).Msg("skipping image")
			continue
		}

		kind := KindIndividual
		if img.Background {
			kind = KindBackground
			stats.Backgrounds++
		} else {
			stats.Individual++
		}

		individual[i] = len(outputs)
		outputs = append(outputs, OutputImage{
			ID:     uuid.NewString(),
			Page:   page + 1,
			Image:  pixels,
			Kind:   kind,
			Bounds: img.Area,
			DPI:    nativeDPI(img),
		})
	}

	for _, group := range groups {
		out, err := a.renderGroup(group, images)
		if err != nil {
			stats.FailedGroups++
			logger.Warn().Err(err).Ints("members", group.Members).Msg("skipping overlap group")
			continue
		}

		for _, idx := range group.Members {
			pos, ok := individual[idx]
			if !ok {
				continue
			}
			outputs[pos].HasRegionRender = true
			if out.SourceID == "" {
				out.SourceID = outputs[pos].ID
			}
		}

		out.Page = page + 1
		outputs = append(outputs, out)
		stats.RegionRenders++
	}

	for i := range outputs {
		outputs[i].Index = i
	}

	return outputs, stats
}

func (a *assembler) renderGroup(group OverlapGroup, images []*ImageInfo) (OutputImage, error) {
	dpi := computeRenderDPI(group, images, a.cfg.MinTextDPI, a.cfg.MaxDPI)

	var rendered *image.RGBA
	var err error
	if a.renderer == nil {
		rendered, err = composeGroup(group, images, dpi)
		if err != nil {
			return OutputImage{}, errors.Wrap(err, "failed to composite group")
		}
	} else {
		rendered, err = a.renderer.RenderRegion(group.Page, group.Bounds, dpi)
		if err != nil {
			return OutputImage{}, errors.Wrapf(err, "failed to render region at %.0f dpi", dpi)
		}
	}
	if rendered == nil || rendered.Bounds().Empty() {
		return OutputImage{}, errors.New("renderer returned an empty region")
	}

	return OutputImage{
		ID:     uuid.NewString(),
		Image:  rendered,
		Kind:   KindRegionRender,
		Bounds: group.Bounds,
		DPI:    dpi,
	}, nil
}

// sortOutputs orders outputs by page, then by index within the page.
func sortOutputs(outputs []OutputImage) {
	sort.SliceStable(outputs, func(i, j int) bool {
		if outputs[i].Page != outputs[j].Page {
			return outputs[i].Page < outputs[j].Page
		}
		return outputs[i].Index < outputs[j].Index
	})
}
