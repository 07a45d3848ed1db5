// Package mupdf renders page regions with MuPDF through go-fitz.
package mupdf

import (
	"image"

	"github.com/gen2brain/go-fitz"
	"github.com/pkg/errors"

	"github.com/ivanvanderbyl/pdfimages"
)

// PageBoxer supplies the page boxes used to place a region on a render.
type PageBoxer interface {
	PageBoxes(page int) (pdfimages.PageBoxes, error)
}

// Renderer rasterizes page regions with MuPDF.
type Renderer struct {
	doc   *fitz.Document
	boxes PageBoxer
}

// Open opens the document at path, or from data when data is not nil.
func Open(path string, data []byte, boxes PageBoxer) (*Renderer, error) {
	var (
		doc *fitz.Document
		err error
	)
	if data != nil {
		doc, err = fitz.NewFromMemory(data)
	} else {
		doc, err = fitz.New(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to open PDF with mupdf")
	}

	return &Renderer{doc: doc, boxes: boxes}, nil
}

// Opener adapts Open to the extractor's renderer registry.
func Opener(path string, data []byte, boxes pdfimages.PageAnalyzer) (pdfimages.ClosableRenderer, error) {
	r, err := Open(path, data, boxes)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// RenderRegion renders the page at dpi and crops area (page coordinates) out of it.
func (r *Renderer) RenderRegion(page int, area pdfimages.Rect, dpi float64) (*image.RGBA, error) {
	if page < 0 || page >= r.doc.NumPage() {
		return nil, errors.Errorf("page %d out of range", page+1)
	}

	boxes, err := r.boxes.PageBoxes(page)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get page boxes")
	}

	img, err := r.doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to render page %d", page+1)
	}

	return pdfimages.CropRegion(img, boxes.CropBox, area, dpi)
}

// Close releases the MuPDF document.
func (r *Renderer) Close() error {
	return r.doc.Close()
}
