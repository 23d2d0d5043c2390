package canvas

import "fmt"

// Extent is the pixel size of a canvas or image.
type Extent struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (e Extent) IsZero() bool {
	return e.Width == 0 && e.Height == 0
}

// Scaled multiplies both dimensions, rounding to the nearest pixel.
func (e Extent) Scaled(factor float64) Extent {
	return Extent{
		Width:  int(float64(e.Width)*factor + 0.5),
		Height: int(float64(e.Height)*factor + 0.5),
	}
}

func (e Extent) Pixels() int {
	return e.Width * e.Height
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// Bounds is an integer rectangle in canvas coordinates.
// Width and Height are always > 0 for a valid region.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func FullBounds(e Extent) Bounds {
	return Bounds{0, 0, e.Width, e.Height}
}

func (b Bounds) Extent() Extent {
	return Extent{b.Width, b.Height}
}

func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// Relative re-expresses b in the coordinate space of the given region.
// Mask bounds are tracked relative to the full canvas and must be shifted
// before they are embedded in a request for a cropped working area.
func (b Bounds) Relative(region Bounds) Bounds {
	return Bounds{b.X - region.X, b.Y - region.Y, b.Width, b.Height}
}

// Grow expands the rectangle by margin pixels on every side.
func (b Bounds) Grow(margin int) Bounds {
	return Bounds{b.X - margin, b.Y - margin, b.Width + 2*margin, b.Height + 2*margin}
}

// Clamp restricts the rectangle to the canvas area.
func (b Bounds) Clamp(e Extent) Bounds {
	x, y := max(b.X, 0), max(b.Y, 0)
	w := min(b.X+b.Width, e.Width) - x
	h := min(b.Y+b.Height, e.Height) - y
	return Bounds{x, y, w, h}
}

// Union returns the smallest rectangle covering both b and other.
func (b Bounds) Union(other Bounds) Bounds {
	x, y := min(b.X, other.X), min(b.Y, other.Y)
	w := max(b.X+b.Width, other.X+other.Width) - x
	h := max(b.Y+b.Height, other.Y+other.Height) - y
	return Bounds{x, y, w, h}
}

func (b Bounds) Contains(other Bounds) bool {
	return other.X >= b.X && other.Y >= b.Y &&
		other.X+other.Width <= b.X+b.Width && other.Y+other.Height <= b.Y+b.Height
}

func (b Bounds) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", b.X, b.Y, b.Width, b.Height)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
