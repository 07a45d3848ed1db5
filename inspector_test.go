package pdfimages

import (
	"bytes"
	"fmt"
	"image"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF assembles a PDF from numbered object bodies, computing the xref table.
func buildPDF(objects []string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")

	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f\r\n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

func stream(dict, content string) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(content), content)
}

func inspectorFixture() []byte {
	page := "q 200 0 0 100 50 60 cm /Im1 Do Q\nq 1 0 0 1 300 400 cm /Fm1 Do Q"
	form := "100 0 0 100 0 0 cm /Im2 Do"
	gray := "/Type /XObject /Subtype /Image /Width 2 /Height 2 /ColorSpace /DeviceGray /BitsPerComponent 8"

	return buildPDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /XObject << /Im1 5 0 R /Fm1 6 0 R >> >> /Contents 4 0 R >>",
		stream("", page),
		stream(gray+" /SMask 7 0 R", "\x10\x20\x30\x40"),
		stream("/Type /XObject /Subtype /Form /BBox [0 0 50 50] /Matrix [1 0 0 1 10 10] /Resources << /XObject << /Im2 5 0 R >> >>", form),
		stream(gray, "\x00\x40\x80\xff"),
	})
}

func TestContentInspector_PageTransforms(t *testing.T) {
	ci, err := NewContentInspectorFromReader(bytes.NewReader(inspectorFixture()), zerolog.Nop())
	require.NoError(t, err)

	byPage, err := ci.PageTransforms()
	require.NoError(t, err)
	require.Len(t, byPage[0], 2)

	direct := byPage[0][0]
	assert.Equal(t, "Im1", direct.Name)
	assert.Equal(t, Matrix{200, 0, 0, 100, 50, 60}, direct.Matrix)
	assert.Equal(t, Rect{50, 60, 250, 160}, direct.Bounds)
	assert.Equal(t, []byte{0x00, 0x40, 0x80, 0xff}, direct.SoftMask)
	assert.Equal(t, 2, direct.MaskWidth)
	assert.Nil(t, direct.Clip)

	// Drawn through the form: form matrix then placement.
	nested := byPage[0][1]
	assert.Equal(t, "Im2", nested.Name)
	assert.Equal(t, Matrix{100, 0, 0, 100, 310, 410}, nested.Matrix)
	require.NotNil(t, nested.Clip)
	assert.Equal(t, Rect{310, 410, 360, 460}, *nested.Clip)
}

func TestContentInspector_SoftMaskDepthsAndFormClip(t *testing.T) {
	page := "q 100 0 0 100 0 0 cm /Im1 Do Q\nq 100 0 0 100 200 0 cm /Im2 Do Q\nq 0 0 50 50 re W n /Fm1 Do Q"
	gray := "/Type /XObject /Subtype /Image /Width 2 /Height 2 /ColorSpace /DeviceGray"

	pdf := buildPDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /XObject << /Im1 5 0 R /Im2 6 0 R /Fm1 9 0 R >> >> /Contents 4 0 R >>",
		stream("", page),
		stream(gray+" /BitsPerComponent 8 /SMask 7 0 R", "\x10\x20\x30\x40"),
		stream(gray+" /BitsPerComponent 8 /SMask 8 0 R", "\x10\x20\x30\x40"),
		stream(gray+" /BitsPerComponent 16", "\xff\x00\x80\x01\x00\xff\x40\x00"),
		stream(gray+" /BitsPerComponent 1", "\x80\x40"),
		// Placed at (400, 400): entirely outside the page clip above.
		stream("/Type /XObject /Subtype /Form /BBox [0 0 50 50] /Matrix [1 0 0 1 400 400] /Resources << /XObject << /Im3 5 0 R >> >>", "50 0 0 50 0 0 cm /Im3 Do"),
	})

	ci, err := NewContentInspectorFromReader(bytes.NewReader(pdf), zerolog.Nop())
	require.NoError(t, err)

	byPage, err := ci.PageTransforms()
	require.NoError(t, err)
	require.Len(t, byPage[0], 3)

	assert.Equal(t, []byte{0xff, 0x80, 0x00, 0x40}, byPage[0][0].SoftMask, "16-bit samples keep their high byte")
	assert.Equal(t, []byte{0xff, 0x00, 0x00, 0xff}, byPage[0][1].SoftMask, "1-bit rows are byte padded")
	assert.Equal(t, 2, byPage[0][1].MaskHeight)

	inForm := byPage[0][2]
	assert.Equal(t, "Im3", inForm.Name)
	assert.True(t, inForm.ClippedOut)
	assert.Nil(t, inForm.Clip)
}

func TestMaskSamples(t *testing.T) {
	out, ok := maskSamples([]byte{1, 2, 3, 4, 5}, 2, 2, 8)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, out)

	out, ok = maskSamples([]byte{0xff, 0x00, 0x12, 0x34}, 2, 1, 16)
	require.True(t, ok)
	assert.Equal(t, []byte{0xff, 0x12}, out)

	// Three pixels per row, each row padded to one byte.
	out, ok = maskSamples([]byte{0b10100000, 0b01000000}, 3, 2, 1)
	require.True(t, ok)
	assert.Equal(t, []byte{255, 0, 255, 0, 255, 0}, out)

	out, ok = maskSamples([]byte{0b11100100}, 4, 1, 2)
	require.True(t, ok)
	assert.Equal(t, []byte{255, 170, 85, 0}, out)

	out, ok = maskSamples([]byte{0xf0}, 2, 1, 4)
	require.True(t, ok)
	assert.Equal(t, []byte{255, 0}, out)

	_, ok = maskSamples([]byte{1, 2, 3}, 2, 2, 8)
	assert.False(t, ok, "short data")
	_, ok = maskSamples([]byte{1, 2, 3, 4}, 2, 2, 16)
	assert.False(t, ok, "short data")
	_, ok = maskSamples(make([]byte, 64), 2, 2, 12)
	assert.False(t, ok, "unsupported depth")
}

func TestEngine_WithContentInspector(t *testing.T) {
	page := "q 0 200 -100 0 300 100 cm /Im1 Do Q\nq 0 0 50 50 re W n 200 0 0 200 350 400 cm /Im2 Do Q"
	grayImage := func(w, h int) string {
		return stream(fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8", w, h),
			strings.Repeat("\x80", w*h))
	}

	pdf := buildPDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 600 800] /Resources << /XObject << /Im1 5 0 R /Im2 6 0 R >> >> /Contents 4 0 R >>",
		stream("", page),
		grayImage(80, 40),
		grayImage(64, 64),
	})

	ci, err := NewContentInspectorFromReader(bytes.NewReader(pdf), zerolog.Nop())
	require.NoError(t, err)

	doc := &fakeDocument{pages: []fakePage{{
		boxes: letterPage(),
		images: []RawImage{
			// Axis-aligned footprint of the quarter-turned draw.
			rawImage(1, Rect{200, 100, 300, 300}, 80, 40, 1),
			rawImage(2, Rect{350, 400, 550, 600}, 64, 64, 2),
		},
	}}}

	outputs, metrics, err := NewEngine(DefaultConfig()).Run(Sources{
		Images: doc, Analyzer: doc, Inspector: ci, LastPage: -1,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, metrics.Statistics.ResolvedTransforms)
	assert.Equal(t, 1, metrics.Statistics.SkippedImages, "the clipped-out image is dropped")

	require.Len(t, outputs, 1)
	assert.Equal(t, image.Rect(0, 0, 40, 80), outputs[0].Image.Bounds())
	assert.Equal(t, Rect{200, 100, 300, 300}, outputs[0].Bounds)
}

func TestContentInspector_RejectsGarbage(t *testing.T) {
	_, err := NewContentInspectorFromReader(bytes.NewReader([]byte("not a pdf")), zerolog.Nop())
	assert.Error(t, err)
}

func TestObjectValues(t *testing.T) {
	m, ok := matrixValue(types.Array{types.Integer(1), types.Float(0.5), types.Integer(0), types.Integer(2), types.Float(10), types.Integer(-4)})
	require.True(t, ok)
	assert.Equal(t, Matrix{1, 0.5, 0, 2, 10, -4}, m)

	_, ok = matrixValue(types.Array{types.Integer(1)})
	assert.False(t, ok)
	_, ok = matrixValue(types.Array{types.Name("a"), types.Integer(0), types.Integer(0), types.Integer(1), types.Integer(0), types.Integer(0)})
	assert.False(t, ok)

	r, ok := rectValue(types.Array{types.Integer(50), types.Integer(60), types.Integer(0), types.Integer(10)})
	require.True(t, ok)
	assert.Equal(t, Rect{0, 10, 50, 60}, r, "rectangles are normalized")

	assert.Equal(t, "Image", nameValue(types.Name("Image")))
	assert.Equal(t, "", nameValue(types.Integer(3)))

	d := types.Dict{"Width": types.Integer(12)}
	w, ok := intValue(lookup(d, "Width"))
	assert.True(t, ok)
	assert.Equal(t, 12, w)
	assert.Nil(t, lookup(d, "Height"))
	assert.Nil(t, lookup(nil, "Width"))
}
