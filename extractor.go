package pdfimages

import (
	"bytes"
	"io"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pkg/errors"
)

// ClosableRenderer is a region renderer that holds its own document handle.
type ClosableRenderer interface {
	RegionRenderer
	io.Closer
}

// RendererOpener opens an alternate region renderer for a document given
// either its path or its bytes. boxes supplies the page geometry the
// renderer needs to locate regions.
type RendererOpener func(path string, data []byte, boxes PageAnalyzer) (ClosableRenderer, error)

// Extractor extracts images from PDFs using pdfium for enumeration and
// analysis and pdfcpu for content stream inspection.
type Extractor struct {
	instance pdfium.Pdfium
	config   Config
	openers  map[RendererType]RendererOpener
}

// NewExtractor creates a new image extractor with default configuration.
func NewExtractor(instance pdfium.Pdfium) *Extractor {
	return NewExtractorWithConfig(instance, DefaultConfig())
}

// NewExtractorWithConfig creates a new image extractor with custom configuration.
func NewExtractorWithConfig(instance pdfium.Pdfium, config Config) *Extractor {
	return &Extractor{
		instance: instance,
		config:   config,
		openers:  make(map[RendererType]RendererOpener),
	}
}

// RegisterRenderer makes an alternate renderer available under a renderer type.
func (x *Extractor) RegisterRenderer(t RendererType, open RendererOpener) {
	x.openers[t] = open
}

// documentInput is a document given by path or by content.
type documentInput struct {
	path string
	data []byte
}

func (in documentInput) openRequest() *requests.OpenDocument {
	if in.data != nil {
		return &requests.OpenDocument{File: &in.data}
	}
	path := in.path
	return &requests.OpenDocument{FilePath: &path}
}

// ExtractFile extracts all images from a PDF file.
func (x *Extractor) ExtractFile(filePath string) ([]OutputImage, error) {
	outputs, _, err := x.extract(documentInput{path: filePath}, 0, -1)
	return outputs, err
}

// ExtractBytes extracts all images from PDF bytes.
func (x *Extractor) ExtractBytes(pdfBytes []byte) ([]OutputImage, error) {
	outputs, _, err := x.extract(documentInput{data: pdfBytes}, 0, -1)
	return outputs, err
}

// ExtractReader extracts all images from a PDF read from reader.
func (x *Extractor) ExtractReader(reader io.Reader) ([]OutputImage, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read PDF")
	}
	return x.ExtractBytes(data)
}

// ExtractPageRange extracts images from a 0-based inclusive range of pages.
// Background detection only sees the pages in the range.
func (x *Extractor) ExtractPageRange(filePath string, startPage, endPage int) ([]OutputImage, error) {
	if endPage >= 0 && startPage > endPage {
		return nil, errors.New("invalid page range: start page must be <= end page")
	}
	outputs, _, err := x.extract(documentInput{path: filePath}, startPage, endPage)
	return outputs, err
}

// ExtractFileWithMetrics extracts all images and returns timing and statistics.
func (x *Extractor) ExtractFileWithMetrics(filePath string) ([]OutputImage, ExtractionMetrics, error) {
	return x.extract(documentInput{path: filePath}, 0, -1)
}

func (x *Extractor) extract(in documentInput, startPage, endPage int) ([]OutputImage, ExtractionMetrics, error) {
	startTime := time.Now()

	doc, err := OpenDocument(x.instance, in.openRequest(), x.config)
	if err != nil {
		return nil, ExtractionMetrics{}, err
	}
	defer doc.Close()

	src := Sources{
		Images:    doc,
		Analyzer:  doc,
		Renderer:  doc,
		FirstPage: startPage,
		LastPage:  endPage,
	}

	if inspector, err := x.openInspector(in); err != nil {
		x.config.Logger.Warn().Err(err).Msg("content inspection unavailable, image transforms will not be resolved")
	} else {
		src.Inspector = inspector
	}

	if x.config.Renderer != RendererPDFium {
		open, ok := x.openers[x.config.Renderer]
		if !ok {
			return nil, ExtractionMetrics{}, errors.Wrapf(ErrNoRenderer, "renderer %q is not registered", x.config.Renderer)
		}
		renderer, err := open(in.path, in.data, doc)
		if err != nil {
			return nil, ExtractionMetrics{}, errors.Wrapf(err, "failed to open %s renderer", x.config.Renderer)
		}
		defer renderer.Close()
		src.Renderer = renderer
	}

	documentOpenTime := time.Since(startTime)

	outputs, metrics, err := NewEngine(x.config).Run(src)
	if err != nil {
		return nil, metrics, err
	}

	metrics.DocumentOpen = documentOpenTime
	metrics.TotalTime = time.Since(startTime)

	return outputs, metrics, nil
}

func (x *Extractor) openInspector(in documentInput) (TransformInspector, error) {
	if in.data != nil {
		return NewContentInspectorFromReader(bytes.NewReader(in.data), x.config.Logger)
	}
	return NewContentInspector(in.path, x.config.Logger)
}

// GetDocumentInfo returns basic information about a PDF without extracting images.
func (x *Extractor) GetDocumentInfo(filePath string) (*DocumentInfo, error) {
	doc, err := OpenDocument(x.instance, documentInput{path: filePath}.openRequest(), x.config)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	info := &DocumentInfo{
		PageCount: doc.PageCount(),
	}
	for i := 0; i < info.PageCount; i++ {
		boxes, err := doc.ImageBoxes(i)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to inspect page %d", i+1)
		}
		info.ImageCount += len(boxes)
	}

	return info, nil
}

// DocumentInfo contains basic information about a PDF document.
type DocumentInfo struct {
	PageCount  int
	ImageCount int
}
