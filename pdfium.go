package pdfimages

import (
	"image"
	"math"
	"unicode"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/enums"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// Document adapts an open pdfium document to the engine's collaborators. It
// enumerates raw images, analyzes page content and renders page regions.
type Document struct {
	instance  pdfium.Pdfium
	doc       references.FPDF_DOCUMENT
	pageCount int
	config    Config
}

// OpenDocument opens a document with pdfium. Failure to open is fatal for
// the whole extraction.
func OpenDocument(instance pdfium.Pdfium, req *requests.OpenDocument, config Config) (*Document, error) {
	doc, err := instance.OpenDocument(req)
	if err != nil {
		return nil, errors.Wrap(ErrDocumentOpen, err.Error())
	}

	pageCount, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
			Document: doc.Document,
		})
		return nil, errors.Wrap(err, "failed to get page count")
	}

	return &Document{
		instance:  instance,
		doc:       doc.Document,
		pageCount: pageCount.PageCount,
		config:    config,
	}, nil
}

// Close releases the pdfium document.
func (d *Document) Close() error {
	_, err := d.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: d.doc,
	})
	return err
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return d.pageCount
}

// withPage loads a page for the duration of fn.
func (d *Document) withPage(index int, fn func(page references.FPDF_PAGE) error) error {
	pageResp, err := d.instance.FPDF_LoadPage(&requests.FPDF_LoadPage{
		Document: d.doc,
		Index:    index,
	})
	if err != nil {
		return errors.Wrap(err, "failed to load page")
	}
	defer d.instance.FPDF_ClosePage(&requests.FPDF_ClosePage{
		Page: pageResp.Page,
	})

	return fn(pageResp.Page)
}

// PageBoxes returns the MediaBox and CropBox of a page. A missing CropBox
// defaults to the MediaBox.
func (d *Document) PageBoxes(index int) (PageBoxes, error) {
	var boxes PageBoxes
	err := d.withPage(index, func(page references.FPDF_PAGE) error {
		var err error
		boxes, err = d.pageBoxes(page)
		return err
	})
	return boxes, err
}

func (d *Document) pageBoxes(page references.FPDF_PAGE) (PageBoxes, error) {
	ref := requests.Page{ByReference: &page}

	media, err := d.instance.FPDFPage_GetMediaBox(&requests.FPDFPage_GetMediaBox{Page: ref})
	if err != nil {
		// Pages without an explicit MediaBox inherit the page size.
		width, werr := d.instance.FPDF_GetPageWidthF(&requests.FPDF_GetPageWidthF{Page: ref})
		height, herr := d.instance.FPDF_GetPageHeightF(&requests.FPDF_GetPageHeightF{Page: ref})
		if werr != nil || herr != nil {
			return PageBoxes{}, errors.Wrap(err, "failed to get page size")
		}
		mediaBox := Rect{X2: float64(width.PageWidth), Y2: float64(height.PageHeight)}
		return PageBoxes{MediaBox: mediaBox, CropBox: mediaBox}, nil
	}

	boxes := PageBoxes{
		MediaBox: NewRect(float64(media.Left), float64(media.Bottom), float64(media.Right), float64(media.Top)),
	}
	boxes.CropBox = boxes.MediaBox

	crop, err := d.instance.FPDFPage_GetCropBox(&requests.FPDFPage_GetCropBox{Page: ref})
	if err == nil {
		cropBox := NewRect(float64(crop.Left), float64(crop.Bottom), float64(crop.Right), float64(crop.Top))
		if !cropBox.IsEmpty() {
			boxes.CropBox = cropBox
		}
	}

	return boxes, nil
}

// pageObject is one object on a page with its type and page-space bounds.
type pageObject struct {
	ref    references.FPDF_PAGEOBJECT
	kind   enums.FPDF_PAGEOBJ
	bounds Rect
}

// pageObjects lists the objects of a page in drawing order. Objects whose
// bounds cannot be read are skipped.
func (d *Document) pageObjects(page references.FPDF_PAGE) ([]pageObject, error) {
	countResp, err := d.instance.FPDFPage_CountObjects(&requests.FPDFPage_CountObjects{
		Page: requests.Page{
			ByReference: &page,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count page objects")
	}

	objects := make([]pageObject, 0, countResp.Count)
	for i := 0; i < countResp.Count; i++ {
		objResp, err := d.instance.FPDFPage_GetObject(&requests.FPDFPage_GetObject{
			Page: requests.Page{
				ByReference: &page,
			},
			Index: i,
		})
		if err != nil {
			continue
		}

		typeResp, err := d.instance.FPDFPageObj_GetType(&requests.FPDFPageObj_GetType{
			PageObject: objResp.PageObject,
		})
		if err != nil {
			continue
		}

		boundsResp, err := d.instance.FPDFPageObj_GetBounds(&requests.FPDFPageObj_GetBounds{
			PageObject: objResp.PageObject,
		})
		if err != nil {
			continue
		}

		objects = append(objects, pageObject{
			ref:  objResp.PageObject,
			kind: typeResp.Type,
			bounds: NewRect(
				float64(boundsResp.Left), float64(boundsResp.Bottom),
				float64(boundsResp.Right), float64(boundsResp.Top),
			),
		})
	}

	return objects, nil
}

// EnumerateImages returns the image objects of a page with their bitmaps.
// Images whose bitmap cannot be read are skipped.
func (d *Document) EnumerateImages(index int) ([]RawImage, error) {
	var images []RawImage
	err := d.withPage(index, func(page references.FPDF_PAGE) error {
		boxes, err := d.pageBoxes(page)
		if err != nil {
			return err
		}
		pageHeight := boxes.Height()

		objects, err := d.pageObjects(page)
		if err != nil {
			return err
		}

		id := 0
		for _, obj := range objects {
			if obj.kind != enums.FPDF_PAGEOBJ_IMAGE {
				continue
			}
			id++

			surface, err := d.imageSurface(obj.ref)
			if err != nil {
				d.config.Logger.Warn().Err(err).Int("page", index+1).Int("image", id).Msg("skipping unreadable image")
				continue
			}

			images = append(images, RawImage{
				ID:      id,
				Box:     BoxFromPage(obj.bounds, pageHeight),
				Surface: surface,
			})
		}
		return nil
	})
	return images, err
}

// imageSurface copies the decoded bitmap of an image object.
func (d *Document) imageSurface(obj references.FPDF_PAGEOBJECT) (Surface, error) {
	bitmapResp, err := d.instance.FPDFImageObj_GetBitmap(&requests.FPDFImageObj_GetBitmap{
		ImageObject: obj,
	})
	if err != nil {
		return Surface{}, errors.Wrap(err, "failed to get image bitmap")
	}
	bitmap := bitmapResp.Bitmap
	defer d.instance.FPDFBitmap_Destroy(&requests.FPDFBitmap_Destroy{
		Bitmap: bitmap,
	})

	width, err := d.instance.FPDFBitmap_GetWidth(&requests.FPDFBitmap_GetWidth{Bitmap: bitmap})
	if err != nil {
		return Surface{}, errors.Wrap(err, "failed to get bitmap width")
	}
	height, err := d.instance.FPDFBitmap_GetHeight(&requests.FPDFBitmap_GetHeight{Bitmap: bitmap})
	if err != nil {
		return Surface{}, errors.Wrap(err, "failed to get bitmap height")
	}
	stride, err := d.instance.FPDFBitmap_GetStride(&requests.FPDFBitmap_GetStride{Bitmap: bitmap})
	if err != nil {
		return Surface{}, errors.Wrap(err, "failed to get bitmap stride")
	}
	format, err := d.instance.FPDFBitmap_GetFormat(&requests.FPDFBitmap_GetFormat{Bitmap: bitmap})
	if err != nil {
		return Surface{}, errors.Wrap(err, "failed to get bitmap format")
	}
	buffer, err := d.instance.FPDFBitmap_GetBuffer(&requests.FPDFBitmap_GetBuffer{Bitmap: bitmap})
	if err != nil {
		return Surface{}, errors.Wrap(err, "failed to get bitmap buffer")
	}

	return Surface{
		Format: bitmapFormat(format.Format),
		Width:  int(width.Width),
		Height: int(height.Height),
		Stride: int(stride.Stride),
		Data:   append([]byte(nil), buffer.Buffer...),
	}, nil
}

// bitmapFormat maps a pdfium bitmap format to a surface format.
func bitmapFormat(f enums.FPDF_BITMAP_FORMAT) SurfaceFormat {
	switch f {
	case enums.FPDF_BITMAP_FORMAT_GRAY:
		return FormatA8
	case enums.FPDF_BITMAP_FORMAT_BGR:
		return FormatBGR24
	case enums.FPDF_BITMAP_FORMAT_BGRX:
		return FormatRGB24
	case enums.FPDF_BITMAP_FORMAT_BGRA:
		return FormatBGRA
	default:
		return FormatUnknown
	}
}

// TextLines merges the characters of a page into line boxes. A new line
// starts when the vertical centre jumps by more than the configured
// threshold.
func (d *Document) TextLines(index int) ([]ContentRegion, error) {
	var lines []ContentRegion
	err := d.withPage(index, func(page references.FPDF_PAGE) error {
		textPage, err := d.instance.FPDFText_LoadPage(&requests.FPDFText_LoadPage{
			Page: requests.Page{
				ByReference: &page,
			},
		})
		if err != nil {
			return errors.Wrap(err, "failed to load text page")
		}
		defer d.instance.FPDFText_ClosePage(&requests.FPDFText_ClosePage{
			TextPage: textPage.TextPage,
		})

		charCount, err := d.instance.FPDFText_CountChars(&requests.FPDFText_CountChars{
			TextPage: textPage.TextPage,
		})
		if err != nil {
			return errors.Wrap(err, "failed to count characters")
		}

		var boxes []Rect
		for i := range charCount.Count {
			unicodeRes, err := d.instance.FPDFText_GetUnicode(&requests.FPDFText_GetUnicode{
				TextPage: textPage.TextPage,
				Index:    i,
			})
			if err != nil || unicodeRes.Unicode == 0 || unicode.IsSpace(rune(unicodeRes.Unicode)) {
				continue
			}

			charBox, err := d.instance.FPDFText_GetCharBox(&requests.FPDFText_GetCharBox{
				TextPage: textPage.TextPage,
				Index:    i,
			})
			if err != nil {
				continue
			}
			boxes = append(boxes, NewRect(charBox.Left, charBox.Bottom, charBox.Right, charBox.Top))
		}

		lines = mergeTextLines(boxes, d.config.LineBreakThreshold)
		return nil
	})
	return lines, err
}

// mergeTextLines joins character boxes in reading order into line boxes.
func mergeTextLines(chars []Rect, lineBreak float64) []ContentRegion {
	var lines []ContentRegion
	var current Rect
	var lastY float64
	open := false

	for _, c := range chars {
		_, cy := c.Center()
		if open && math.Abs(cy-lastY) > lineBreak {
			lines = append(lines, ContentRegion{Kind: RegionText, Area: current})
			open = false
		}
		if !open {
			current = c
			open = true
		} else {
			current = current.Union(c)
		}
		lastY = cy
	}
	if open {
		lines = append(lines, ContentRegion{Kind: RegionText, Area: current})
	}

	return lines
}

// PathRegions returns the bounds of vector paths and form objects, clipped
// to the visible page.
func (d *Document) PathRegions(index int) ([]ContentRegion, error) {
	var regions []ContentRegion
	err := d.withPage(index, func(page references.FPDF_PAGE) error {
		boxes, err := d.pageBoxes(page)
		if err != nil {
			return err
		}
		visible, ok := boxes.MediaBox.Intersect(boxes.CropBox)
		if !ok {
			visible = boxes.CropBox
		}

		objects, err := d.pageObjects(page)
		if err != nil {
			return err
		}

		for _, obj := range objects {
			if obj.kind != enums.FPDF_PAGEOBJ_PATH && obj.kind != enums.FPDF_PAGEOBJ_FORM {
				continue
			}
			area, ok := obj.bounds.Intersect(visible)
			if !ok {
				continue
			}
			regions = append(regions, ContentRegion{Kind: RegionPath, Area: area})
		}
		return nil
	})
	return regions, err
}

// ImageBoxes returns pdfium's own placement of every image object, derived
// from the object matrix.
func (d *Document) ImageBoxes(index int) ([]ImageBox, error) {
	var result []ImageBox
	err := d.withPage(index, func(page references.FPDF_PAGE) error {
		objects, err := d.pageObjects(page)
		if err != nil {
			return err
		}

		for _, obj := range objects {
			if obj.kind != enums.FPDF_PAGEOBJ_IMAGE {
				continue
			}

			size, err := d.instance.FPDFImageObj_GetImagePixelSize(&requests.FPDFImageObj_GetImagePixelSize{
				ImageObject: obj.ref,
			})
			if err != nil {
				continue
			}

			area := obj.bounds
			matrixResp, err := d.instance.FPDFPageObj_GetMatrix(&requests.FPDFPageObj_GetMatrix{
				PageObject: obj.ref,
			})
			if err == nil {
				fm := matrixResp.Matrix
				m := Matrix{float64(fm.A), float64(fm.B), float64(fm.C), float64(fm.D), float64(fm.E), float64(fm.F)}
				area = m.UnitBounds()
			}

			result = append(result, ImageBox{
				Width:  int(size.Width),
				Height: int(size.Height),
				Area:   area,
			})
		}
		return nil
	})
	return result, err
}

// RenderRegion renders the page at dpi and crops the area out of it.
func (d *Document) RenderRegion(index int, area Rect, dpi float64) (*image.RGBA, error) {
	boxes, err := d.PageBoxes(index)
	if err != nil {
		return nil, err
	}

	render, err := d.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: d.doc,
				Index:    index,
			},
		},
		DPI: int(math.Round(dpi)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to render page")
	}
	defer render.Cleanup()

	return CropRegion(render.Result.Image, boxes.CropBox, area, dpi)
}

// CropRegion copies area (page coordinates) out of a full-page render of
// the given visible page box at dpi.
func CropRegion(page *image.RGBA, visible, area Rect, dpi float64) (*image.RGBA, error) {
	if page == nil {
		return nil, errors.New("renderer returned no image")
	}

	scale := dpi / 72
	rect := image.Rect(
		int(math.Floor((area.X1-visible.X1)*scale)),
		int(math.Floor((visible.Y2-area.Y2)*scale)),
		int(math.Ceil((area.X2-visible.X1)*scale)),
		int(math.Ceil((visible.Y2-area.Y1)*scale)),
	).Intersect(page.Bounds())
	if rect.Empty() {
		return nil, errors.Errorf("region %v lies outside the rendered page", area)
	}

	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Copy(out, image.Point{}, page, rect, draw.Src, nil)
	return out, nil
}
