package pdfimages

import (
	"bytes"
	"regexp"
	"strconv"
)

// imageNamePattern matches the resource names producers commonly give to
// image XObjects (/Im0, /Image12, /I3, /img_7).
var imageNamePattern = regexp.MustCompile(`^(?i:im|image|img)[_\-]?\w*$|^I\d+$`)

// looksLikeImageName reports whether an XObject resource name follows the
// usual naming convention for images. Used when the resource itself cannot
// be resolved.
func looksLikeImageName(name string) bool {
	return imageNamePattern.MatchString(name)
}

// graphicsState holds the parts of the PDF graphics state that affect image
// placement.
type graphicsState struct {
	ctm        Matrix
	clip       *Rect // Page space
	clippedOut bool  // The clip has no area left
}

// intersectClip narrows the clip to r. Once the clip has no area it stays
// empty until the state is restored.
func (s *graphicsState) intersectClip(r Rect) {
	if s.clippedOut {
		return
	}
	if s.clip != nil {
		inter, ok := r.Intersect(*s.clip)
		if !ok {
			s.clip, s.clippedOut = nil, true
			return
		}
		r = inter
	}
	if r.IsEmpty() {
		s.clip, s.clippedOut = nil, true
		return
	}
	s.clip = &r
}

// drawOp is a `Do` operator together with the state active when it ran.
type drawOp struct {
	Name       string
	CTM        Matrix
	Clip       *Rect
	ClippedOut bool
}

// contentWalker is a minimal content-stream interpreter. It only tracks
// q/Q, cm, re, W/W*, path-painting operators and Do; everything else is
// consumed and ignored.
type contentWalker struct {
	state    graphicsState
	stack    []graphicsState
	operands []string
	pending  *Rect
	onDo     func(drawOp)
}

// walkContentStream interprets data starting from the given graphics state
// and calls onDo for every XObject draw.
func walkContentStream(data []byte, start graphicsState, onDo func(drawOp)) {
	w := &contentWalker{
		state: start,
		onDo:  onDo,
	}

	sc := newContentScanner(data)
	for {
		tok, ok := sc.next()
		if !ok {
			return
		}
		if isOperand(tok) {
			w.operands = append(w.operands, tok)
			continue
		}
		if tok == "ID" {
			sc.skipInlineImage()
		}
		w.apply(tok)
		w.operands = w.operands[:0]
	}
}

func (w *contentWalker) apply(op string) {
	switch op {
	case "q":
		w.stack = append(w.stack, w.state)
	case "Q":
		if n := len(w.stack); n > 0 {
			w.state = w.stack[n-1]
			w.stack = w.stack[:n-1]
		}
	case "cm":
		if m, ok := w.numbers(6); ok {
			w.state.ctm = Matrix{m[0], m[1], m[2], m[3], m[4], m[5]}.Multiply(w.state.ctm)
		}
	case "re":
		if v, ok := w.numbers(4); ok {
			r := w.state.ctm.TransformRect(NewRect(v[0], v[1], v[0]+v[2], v[1]+v[3]))
			w.pending = &r
		}
	case "W", "W*":
		if w.pending == nil {
			return
		}
		w.state.intersectClip(*w.pending)
		w.pending = nil
	case "n", "f", "F", "f*", "B", "B*", "b", "b*", "S", "s":
		w.pending = nil
	case "Do":
		if len(w.operands) == 0 {
			return
		}
		name := w.operands[len(w.operands)-1]
		if len(name) < 2 || name[0] != '/' {
			return
		}
		op := drawOp{Name: name[1:], CTM: w.state.ctm, ClippedOut: w.state.clippedOut}
		if w.state.clip != nil {
			clip := *w.state.clip
			op.Clip = &clip
		}
		w.onDo(op)
	}
}

// numbers parses the last n operands as numbers.
func (w *contentWalker) numbers(n int) ([]float64, bool) {
	if len(w.operands) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i, tok := range w.operands[len(w.operands)-n:] {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// isOperand reports whether a token is an operand rather than an operator.
func isOperand(tok string) bool {
	if tok == "" {
		return false
	}
	switch tok[0] {
	case '/', '(', '<', '>', '[', ']', '{', '}':
		return true
	case '+', '-', '.', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	switch tok {
	case "true", "false", "null":
		return true
	}
	return false
}

// contentScanner splits a content stream into whitespace-delimited tokens.
// Strings, hex strings and dictionary delimiters come back as single opaque
// tokens.
type contentScanner struct {
	data []byte
	pos  int
}

func newContentScanner(data []byte) *contentScanner {
	return &contentScanner{data: data}
}

func isPDFWhitespace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\r' || b == '\t' || b == '\f' || b == 0
}

func isPDFDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (s *contentScanner) next() (string, bool) {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case isPDFWhitespace(c):
			s.pos++
		case c == '%':
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
		default:
			return s.token(), true
		}
	}
	return "", false
}

func (s *contentScanner) token() string {
	start := s.pos
	c := s.data[s.pos]

	switch c {
	case '(':
		s.skipString()
		return "()"
	case '<':
		if s.pos+1 < len(s.data) && s.data[s.pos+1] == '<' {
			s.pos += 2
			return "<<"
		}
		for s.pos < len(s.data) && s.data[s.pos] != '>' {
			s.pos++
		}
		s.pos++
		return "<>"
	case '>':
		if s.pos+1 < len(s.data) && s.data[s.pos+1] == '>' {
			s.pos += 2
			return ">>"
		}
		s.pos++
		return ">"
	case '[', ']', '{', '}', ')':
		s.pos++
		return string(c)
	case '/':
		s.pos++
	}

	for s.pos < len(s.data) && !isPDFWhitespace(s.data[s.pos]) && !isPDFDelimiter(s.data[s.pos]) {
		s.pos++
	}
	return string(s.data[start:s.pos])
}

// skipString consumes a literal string with balanced parentheses and escapes.
func (s *contentScanner) skipString() {
	depth := 0
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			s.pos++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

// skipInlineImage consumes binary inline image data up to and including EI.
func (s *contentScanner) skipInlineImage() {
	// A single whitespace byte separates ID from the data.
	if s.pos < len(s.data) && isPDFWhitespace(s.data[s.pos]) {
		s.pos++
	}
	for s.pos < len(s.data) {
		idx := bytes.Index(s.data[s.pos:], []byte("EI"))
		if idx < 0 {
			s.pos = len(s.data)
			return
		}
		end := s.pos + idx
		before := end == 0 || isPDFWhitespace(s.data[end-1])
		after := end+2 >= len(s.data) || isPDFWhitespace(s.data[end+2])
		s.pos = end + 2
		if before && after {
			return
		}
	}
}

// ParseImageTransforms interprets a decoded content stream and returns one
// ImageTransform per image draw. isImage decides which XObject names are
// images; nil falls back to the resource naming convention.
func ParseImageTransforms(data []byte, isImage func(name string) bool) []ImageTransform {
	if isImage == nil {
		isImage = looksLikeImageName
	}

	var transforms []ImageTransform
	walkContentStream(data, graphicsState{ctm: Identity()}, func(op drawOp) {
		if isImage(op.Name) {
			transforms = append(transforms, newImageTransform(op))
		}
	})
	return transforms
}

// newImageTransform derives the placement of an image from its draw operation.
func newImageTransform(op drawOp) ImageTransform {
	w, h := op.CTM.ColumnNorms()
	return ImageTransform{
		Name:       op.Name,
		Matrix:     op.CTM,
		Width:      w,
		Height:     h,
		Bounds:     op.CTM.UnitBounds(),
		Clip:       op.Clip,
		ClippedOut: op.ClippedOut,
	}
}
