package pdfimages

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// RendererType selects the backend used for region rasterization.
type RendererType string

const (
	// RendererPDFium renders with the same pdfium instance used for analysis.
	RendererPDFium RendererType = "pdfium"

	// RendererMuPDF renders with go-fitz (MuPDF).
	RendererMuPDF RendererType = "mupdf"
)

// Config controls image extraction behavior.
type Config struct {
	// MinImageSize discards images smaller than this many pixels in either
	// dimension (default: 32)
	MinImageSize int `yaml:"min_image_size"`

	// BackgroundCoverage is the minimum page-coverage fraction for an image
	// recurring on several pages to be treated as a background (default: 0.9)
	BackgroundCoverage float64 `yaml:"background_coverage"`

	// MinTextDPI is the minimum render DPI for groups overlapping text or
	// vector paths, so the text stays legible (default: 200)
	MinTextDPI float64 `yaml:"min_text_dpi"`

	// MaxDPI caps the native DPI used for region renders (default: 600)
	MaxDPI float64 `yaml:"max_dpi"`

	// OverlapThreshold is the intersection-over-smaller-area fraction above
	// which two images are grouped (default: 0.7)
	OverlapThreshold float64 `yaml:"overlap_threshold"`

	// AdjacencyTolerance is the edge distance in points within which two
	// images count as touching (default: 1.0)
	AdjacencyTolerance float64 `yaml:"adjacency_tolerance"`

	// BoundsMargin is the fraction of the page size an image may extend past
	// the page edge before its bounds are considered invalid (default: 0.1)
	BoundsMargin float64 `yaml:"bounds_margin"`

	// LineBreakThreshold is the vertical jump in points between consecutive
	// characters that starts a new text line (default: 2.0)
	LineBreakThreshold float64 `yaml:"line_break_threshold"`

	// Renderer selects the region rasterization backend (default: pdfium)
	Renderer RendererType `yaml:"renderer"`

	// EnableMetricsLogging logs per-page timing and a document summary (default: false)
	EnableMetricsLogging bool `yaml:"enable_metrics_logging"`

	// Logger receives diagnostics for skipped pages, images and groups.
	Logger zerolog.Logger `yaml:"-"`

	// Progress, if set, is called after each page is analyzed.
	Progress func(done, total int) `yaml:"-"`
}

// DefaultConfig returns the default extraction configuration.
func DefaultConfig() Config {
	return Config{
		MinImageSize:       32,
		BackgroundCoverage: 0.9,
		MinTextDPI:         200,
		MaxDPI:             600,
		OverlapThreshold:   0.7,
		AdjacencyTolerance: DefaultAdjacencyTolerance,
		BoundsMargin:       0.1,
		LineBreakThreshold: 2.0,
		Renderer:           RendererPDFium,
		Logger:             zerolog.Nop(),
	}
}

// LoadConfig reads a YAML configuration file over the defaults and then
// applies PDFIMAGES_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for values the pipeline cannot work with.
func (c Config) Validate() error {
	if c.MinImageSize < 0 {
		return errors.Errorf("min_image_size must be >= 0, got %d", c.MinImageSize)
	}
	if c.BackgroundCoverage <= 0 || c.BackgroundCoverage > 1 {
		return errors.Errorf("background_coverage must be in (0, 1], got %v", c.BackgroundCoverage)
	}
	if c.OverlapThreshold < 0 || c.OverlapThreshold > 1 {
		return errors.Errorf("overlap_threshold must be in [0, 1], got %v", c.OverlapThreshold)
	}
	if c.MaxDPI <= 0 {
		return errors.Errorf("max_dpi must be positive, got %v", c.MaxDPI)
	}
	if c.MinTextDPI < 0 {
		return errors.Errorf("min_text_dpi must be >= 0, got %v", c.MinTextDPI)
	}
	if c.BoundsMargin < 0 {
		return errors.Errorf("bounds_margin must be >= 0, got %v", c.BoundsMargin)
	}
	switch c.Renderer {
	case RendererPDFium, RendererMuPDF:
	default:
		return errors.Errorf("unknown renderer %q", c.Renderer)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	floats := map[string]*float64{
		"PDFIMAGES_BACKGROUND_COVERAGE": &cfg.BackgroundCoverage,
		"PDFIMAGES_MIN_TEXT_DPI":        &cfg.MinTextDPI,
		"PDFIMAGES_MAX_DPI":             &cfg.MaxDPI,
		"PDFIMAGES_OVERLAP_THRESHOLD":   &cfg.OverlapThreshold,
		"PDFIMAGES_BOUNDS_MARGIN":       &cfg.BoundsMargin,
	}
	for key, dst := range floats {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", key)
		}
		*dst = parsed
	}

	if v := os.Getenv("PDFIMAGES_MIN_IMAGE_SIZE"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "invalid PDFIMAGES_MIN_IMAGE_SIZE")
		}
		cfg.MinImageSize = parsed
	}
	if v := os.Getenv("PDFIMAGES_RENDERER"); v != "" {
		cfg.Renderer = RendererType(strings.ToLower(v))
	}
	if v := os.Getenv("PDFIMAGES_METRICS"); v == "true" || v == "1" {
		cfg.EnableMetricsLogging = true
	}
	return nil
}
