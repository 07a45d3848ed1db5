package pdfimages

import (
	"time"

	"github.com/pkg/errors"
)

// ExtractionMetrics contains timing and statistics for one extraction
type ExtractionMetrics struct {
	TotalTime       time.Duration
	DocumentOpen    time.Duration
	PageExtractions []PageMetrics
	Statistics      ExtractionStatistics
}

// PageMetrics contains timing for a single page
type PageMetrics struct {
	PageNumber int
	Duration   time.Duration
	Images     int
}

// ExtractionStatistics contains document-level counts
type ExtractionStatistics struct {
	TotalPages         int
	RawImages          int
	ResolvedTransforms int
	CorrectedBounds    int
	Individual         int
	Backgrounds        int
	RegionRenders      int
	SkippedImages      int
	SkippedRepeats     int
	SkippedPages       int
	FailedGroups       int
}

// pageData is everything collected for a page before document-wide steps.
type pageData struct {
	index    int
	images   []*ImageInfo
	texts    []ContentRegion
	paths    []ContentRegion
	duration time.Duration
}

// Engine runs the extraction pipeline over a set of collaborators. It is
// independent of any PDF library.
type Engine struct {
	config Config
}

// NewEngine creates an engine with the given configuration.
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// Run extracts the output images of a document. Per-page, per-image and
// per-group failures are logged and skipped; only a missing collaborator
// is an error.
func (e *Engine) Run(src Sources) ([]OutputImage, ExtractionMetrics, error) {
	var metrics ExtractionMetrics
	if src.Images == nil || src.Analyzer == nil {
		return nil, metrics, errors.New("image enumerator and page analyzer are required")
	}

	start := time.Now()
	logger := e.config.Logger
	stats := &metrics.Statistics

	var transforms map[int][]ImageTransform
	if src.Inspector != nil {
		var err error
		transforms, err = src.Inspector.PageTransforms()
		if err != nil {
			logger.Warn().Err(err).Msg("content inspection failed, continuing without transforms")
			transforms = nil
		}
	}

	first, last := src.pageRange()
	total := last - first + 1
	if total < 0 {
		total = 0
	}

	var pages []*pageData
	var all []*ImageInfo
	for p := first; p <= last; p++ {
		pageStart := time.Now()
		pd, err := e.analyzePage(src, p, transforms[p], stats)
		if err != nil {
			stats.SkippedPages++
			logger.Warn().Err(err).Int("page", p+1).Msg("skipping page")
		} else {
			pd.duration = time.Since(pageStart)
			pages = append(pages, pd)
			all = append(all, pd.images...)
		}
		if e.config.Progress != nil {
			e.config.Progress(p-first+1, total)
		}
	}
	stats.TotalPages = total

	bg := detectBackgrounds(all, e.config.BackgroundCoverage)

	asm := &assembler{cfg: e.config, renderer: src.Renderer, bg: bg}
	settings := groupSettings{
		OverlapThreshold:   e.config.OverlapThreshold,
		AdjacencyTolerance: e.config.AdjacencyTolerance,
	}

	var outputs []OutputImage
	for _, pd := range pages {
		pageStart := time.Now()

		groups := groupOverlaps(pd.index, pd.images, pd.texts, pd.paths, settings)
		pageOutputs, ps := asm.assemblePage(pd.index, pd.images, groups)
		outputs = append(outputs, pageOutputs...)

		stats.Individual += ps.Individual
		stats.Backgrounds += ps.Backgrounds
		stats.RegionRenders += ps.RegionRenders
		stats.SkippedImages += ps.SkippedImages
		stats.SkippedRepeats += ps.SkippedRepeats
		stats.FailedGroups += ps.FailedGroups

		duration := pd.duration + time.Since(pageStart)
		metrics.PageExtractions = append(metrics.PageExtractions, PageMetrics{
			PageNumber: pd.index + 1,
			Duration:   duration,
			Images:     len(pageOutputs),
		})

		if e.config.EnableMetricsLogging {
			logger.Info().
				Int("page", pd.index+1).
				Int("outputs", len(pageOutputs)).
				Int("groups", len(groups)).
				Dur("duration", duration).
				Msg("page extracted")
		}
	}

	sortOutputs(outputs)
	metrics.TotalTime = time.Since(start)

	if e.config.EnableMetricsLogging {
		logExtractionMetrics(e.config, metrics)
	}

	return outputs, metrics, nil
}

// analyzePage collects the images of a page and resolves their placement.
func (e *Engine) analyzePage(src Sources, page int, transforms []ImageTransform, stats *ExtractionStatistics) (*pageData, error) {
	logger := e.config.Logger.With().Int("page", page+1).Logger()

	boxes, err := src.Analyzer.PageBoxes(page)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read page boxes")
	}
	pageWidth, pageHeight := boxes.Width(), boxes.Height()

	raw, err := src.Images.EnumerateImages(page)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate images")
	}
	stats.RawImages += len(raw)
	if len(raw) == 0 {
		return nil, errors.New("page has no images")
	}

	pd := &pageData{index: page}
	for _, r := range raw {
		s := r.Surface
		if s.Width < e.config.MinImageSize || s.Height < e.config.MinImageSize {
			logger.Debug().Int("image", r.ID).Int("width", s.Width).Int("height", s.Height).Msg("discarding small image")
			continue
		}
		if s.Format.BytesPerPixel() == 0 {
			stats.SkippedImages++
			logger.Warn().Err(ErrUnsupportedFormat).Int("image", r.ID).Msg("skipping image")
			continue
		}

		hasAlpha, isGray := surfaceFlags(s.Format)
		area := r.Box.ToPage(pageHeight)
		img := &ImageInfo{
			ID:         r.ID,
			Area:       area,
			Surface:    s,
			HasAlpha:   hasAlpha,
			IsGray:     isGray,
			Page:       page,
			PageWidth:  pageWidth,
			PageHeight: pageHeight,
		}
		if w, h := area.Width(), area.Height(); w > 0 && h > 0 {
			img.ScaleX = float64(s.Width) / w
			img.ScaleY = float64(s.Height) / h
		}
		pd.images = append(pd.images, img)
	}
	if len(pd.images) == 0 {
		return nil, errors.New("page has no usable images")
	}

	stats.ResolvedTransforms += resolveTransforms(pd.images, transforms)

	visible := pd.images[:0]
	for _, img := range pd.images {
		if img.Hidden {
			stats.SkippedImages++
			logger.Debug().Err(ErrImageClipped).Int("image", img.ID).Msg("skipping image")
			continue
		}
		visible = append(visible, img)
	}
	pd.images = visible
	if len(pd.images) == 0 {
		return nil, errors.New("page has no visible images")
	}

	rendererBoxes, err := src.Analyzer.ImageBoxes(page)
	if err != nil {
		logger.Warn().Err(err).Msg("renderer image boxes unavailable")
		rendererBoxes = nil
	}
	for i, c := range correctBounds(pd.images, boxes, rendererBoxes, e.config.BoundsMargin) {
		if c == correctionNone {
			continue
		}
		stats.CorrectedBounds++
		logger.Debug().Int("image", pd.images[i].ID).Str("correction", c.String()).Msg("corrected image bounds")
	}

	pd.texts, err = src.Analyzer.TextLines(page)
	if err != nil {
		logger.Warn().Err(err).Msg("text lines unavailable")
	}
	pd.paths, err = src.Analyzer.PathRegions(page)
	if err != nil {
		logger.Warn().Err(err).Msg("path regions unavailable")
	}

	return pd, nil
}

// logExtractionMetrics logs the document summary
func logExtractionMetrics(config Config, metrics ExtractionMetrics) {
	s := metrics.Statistics
	event := config.Logger.Info().
		Dur("total", metrics.TotalTime).
		Int("pages", s.TotalPages).
		Int("raw_images", s.RawImages).
		Int("resolved_transforms", s.ResolvedTransforms).
		Int("corrected_bounds", s.CorrectedBounds).
		Int("individual", s.Individual).
		Int("backgrounds", s.Backgrounds).
		Int("region_renders", s.RegionRenders).
		Int("skipped_images", s.SkippedImages).
		Int("skipped_repeats", s.SkippedRepeats).
		Int("skipped_pages", s.SkippedPages).
		Int("failed_groups", s.FailedGroups)

	if n := len(metrics.PageExtractions); n > 0 {
		event = event.Dur("avg_per_page", metrics.TotalTime/time.Duration(n))
	}

	event.Msg("extraction complete")
}
