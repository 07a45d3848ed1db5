package pdfimages

import (
	"math"
)

// DefaultAdjacencyTolerance is the distance in points within which two
// rectangle edges are considered touching.
const DefaultAdjacencyTolerance = 1.0

// Rect represents an axis-aligned box in PDF page coordinates (points).
// Y increases upward, so Y1 is the bottom edge and Y2 the top edge.
type Rect struct {
	X1 float64 // Left
	Y1 float64 // Bottom
	X2 float64 // Right
	Y2 float64 // Top
}

// NewRect builds a normalized rectangle from two arbitrary corners.
func NewRect(x1, y1, x2, y2 float64) Rect {
	return Rect{
		X1: math.Min(x1, x2),
		Y1: math.Min(y1, y2),
		X2: math.Max(x1, x2),
		Y2: math.Max(y1, y2),
	}
}

// Width returns the width of the rectangle.
func (r Rect) Width() float64 {
	return math.Abs(r.X2 - r.X1)
}

// Height returns the height of the rectangle.
func (r Rect) Height() float64 {
	return math.Abs(r.Y2 - r.Y1)
}

// Area returns the area of the rectangle.
func (r Rect) Area() float64 {
	return r.Width() * r.Height()
}

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// Center returns the centre point of the rectangle.
func (r Rect) Center() (float64, float64) {
	return (r.X1 + r.X2) / 2, (r.Y1 + r.Y2) / 2
}

// Normalize orders the corners so that X1 <= X2 and Y1 <= Y2.
func (r Rect) Normalize() Rect {
	return NewRect(r.X1, r.Y1, r.X2, r.Y2)
}

// Intersect returns the intersection of two rectangles. The boolean is false
// when the rectangles do not share any area.
func (r Rect) Intersect(other Rect) (Rect, bool) {
	a, b := r.Normalize(), other.Normalize()
	out := Rect{
		X1: math.Max(a.X1, b.X1),
		Y1: math.Max(a.Y1, b.Y1),
		X2: math.Min(a.X2, b.X2),
		Y2: math.Min(a.Y2, b.Y2),
	}
	if out.X2 <= out.X1 || out.Y2 <= out.Y1 {
		return Rect{}, false
	}
	return out, true
}

// Intersects reports whether two rectangles share a positive area.
func (r Rect) Intersects(other Rect) bool {
	_, ok := r.Intersect(other)
	return ok
}

// Union returns the smallest rectangle containing both rectangles.
func (r Rect) Union(other Rect) Rect {
	a, b := r.Normalize(), other.Normalize()
	return Rect{
		X1: math.Min(a.X1, b.X1),
		Y1: math.Min(a.Y1, b.Y1),
		X2: math.Max(a.X2, b.X2),
		Y2: math.Max(a.Y2, b.Y2),
	}
}

// Contains reports whether other lies entirely within r.
func (r Rect) Contains(other Rect) bool {
	a, b := r.Normalize(), other.Normalize()
	return a.X1 <= b.X1 && a.Y1 <= b.Y1 && a.X2 >= b.X2 && a.Y2 >= b.Y2
}

// Translate shifts the rectangle by dx, dy.
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{X1: r.X1 + dx, Y1: r.Y1 + dy, X2: r.X2 + dx, Y2: r.Y2 + dy}
}

// OverlapFraction returns the intersection area divided by the area of the
// smaller rectangle. The result is in [0, 1] and symmetric.
func (r Rect) OverlapFraction(other Rect) float64 {
	inter, ok := r.Intersect(other)
	if !ok {
		return 0
	}

	smallerArea := math.Min(r.Area(), other.Area())
	if smallerArea == 0 {
		return 0
	}

	return math.Min(1, inter.Area()/smallerArea)
}

// IsAdjacent reports whether the two rectangles touch along an edge within
// tol points while overlapping on the other axis. Rectangles that overlap in
// area are not adjacent; that case is handled by OverlapFraction.
func (r Rect) IsAdjacent(other Rect, tol float64) bool {
	a, b := r.Normalize(), other.Normalize()
	if a.Intersects(b) {
		return false
	}

	overlapX := math.Min(a.X2, b.X2) - math.Max(a.X1, b.X1)
	overlapY := math.Min(a.Y2, b.Y2) - math.Max(a.Y1, b.Y1)

	// Side by side
	if overlapY > 0 && (math.Abs(a.X2-b.X1) <= tol || math.Abs(b.X2-a.X1) <= tol) {
		return true
	}

	// Stacked
	if overlapX > 0 && (math.Abs(a.Y2-b.Y1) <= tol || math.Abs(b.Y2-a.Y1) <= tol) {
		return true
	}

	return false
}

// corners returns the four corners in the order bottom-left, bottom-right,
// top-right, top-left.
func (r Rect) corners() [4][2]float64 {
	n := r.Normalize()
	return [4][2]float64{
		{n.X1, n.Y1},
		{n.X2, n.Y1},
		{n.X2, n.Y2},
		{n.X1, n.Y2},
	}
}

// Box is a rectangle in a top-left origin, y-down coordinate system as
// reported by image enumerators.
type Box struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// ToPage converts the y-down box into page coordinates for a page of the
// given height.
func (b Box) ToPage(pageHeight float64) Rect {
	return NewRect(b.Left, pageHeight-b.Bottom, b.Right, pageHeight-b.Top)
}

// BoxFromPage converts a page-coordinate rectangle into a y-down box.
func BoxFromPage(r Rect, pageHeight float64) Box {
	n := r.Normalize()
	return Box{
		Left:   n.X1,
		Top:    pageHeight - n.Y2,
		Right:  n.X2,
		Bottom: pageHeight - n.Y1,
	}
}

// Matrix is a PDF affine matrix [a b c d e f] mapping (x, y) to
// (a*x + c*y + e, b*x + d*y + f).
type Matrix [6]float64

// Identity returns the identity matrix.
func Identity() Matrix {
	return Matrix{1, 0, 0, 1, 0, 0}
}

// Multiply returns m × other, i.e. m is applied first, then other. This is
// the order PDF uses for `cm`: CTM' = M × CTM.
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		m[0]*other[0] + m[1]*other[2],
		m[0]*other[1] + m[1]*other[3],
		m[2]*other[0] + m[3]*other[2],
		m[2]*other[1] + m[3]*other[3],
		m[4]*other[0] + m[5]*other[2] + other[4],
		m[4]*other[1] + m[5]*other[3] + other[5],
	}
}

// Transform applies the matrix to a point.
func (m Matrix) Transform(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// ColumnNorms returns the lengths of the images of the unit x and y vectors.
// For an image placement matrix these are the drawn width and height in points.
func (m Matrix) ColumnNorms() (float64, float64) {
	return math.Hypot(m[0], m[1]), math.Hypot(m[2], m[3])
}

// Normalize removes scale and translation, leaving only rotation and mirroring.
func (m Matrix) Normalize() Matrix {
	w, h := m.ColumnNorms()
	out := Matrix{0, 0, 0, 0, 0, 0}
	if w > 0 {
		out[0] = m[0] / w
		out[1] = m[1] / w
	}
	if h > 0 {
		out[2] = m[2] / h
		out[3] = m[3] / h
	}
	return out
}

// NeedsTransform reports whether the matrix rotates or mirrors its content.
func (m Matrix) NeedsTransform() bool {
	const eps = 0.01
	return math.Abs(m[1]) > eps || math.Abs(m[2]) > eps || m[0] < 0 || m[3] < 0
}

// Invert returns the inverse matrix. The boolean is false for singular matrices.
func (m Matrix) Invert() (Matrix, bool) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-12 {
		return Matrix{}, false
	}
	a := m[3] / det
	b := -m[1] / det
	c := -m[2] / det
	d := m[0] / det
	return Matrix{a, b, c, d, -(m[4]*a + m[5]*c), -(m[4]*b + m[5]*d)}, true
}

// UnitBounds returns the bounding box of the unit square mapped through the
// matrix, which is where an image XObject lands on the page.
func (m Matrix) UnitBounds() Rect {
	return m.TransformRect(Rect{X1: 0, Y1: 0, X2: 1, Y2: 1})
}

// TransformRect maps all four corners of r and returns their bounding box.
func (m Matrix) TransformRect(r Rect) Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range r.corners() {
		x, y := m.Transform(c[0], c[1])
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	return Rect{X1: minX, Y1: minY, X2: maxX, Y2: maxY}
}

// pointDistance returns the Euclidean distance between two points.
func pointDistance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

// withinTolerance reports whether a and b differ by at most frac of the larger.
func withinTolerance(a, b, frac float64) bool {
	larger := math.Max(math.Abs(a), math.Abs(b))
	if larger == 0 {
		return true
	}
	return math.Abs(a-b) <= larger*frac
}
