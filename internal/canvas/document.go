package canvas

// SelectionOptions control how the current selection is converted into a
// generation mask. Grow, feather and padding are fractions of the selection
// size, not pixels.
type SelectionOptions struct {
	Grow     float64
	Feather  float64
	Padding  float64
	MinSize  int
	Square   bool
	Invert   bool
	Multiple int
}

// Layer is a single layer of the host document.
type Layer interface {
	ID() string
	Name() string
	SetName(name string)
	SetLocked(locked bool)
	Bounds() Bounds
	Animated() bool
	HasKeyframeAt(frame int) bool
}

// Document is the host-document capability consumed by the orchestrator.
// The real implementation lives in the editor host; MemDocument provides an
// in-process stand-in.
type Document interface {
	Extent() Extent
	Filename() string
	IsActive() bool
	CheckColorMode() (ok bool, msg string)

	SelectionBounds() (Bounds, bool)
	CreateMaskFromSelection(opts SelectionOptions) *Mask

	GetImage(bounds Bounds, excludeLayers []string) *Image
	GetLayerImage(layer Layer, bounds Bounds, frame int) *Image

	InsertLayer(name string, img *Image, bounds Bounds) Layer
	InsertVectorLayer(name string, svg string) Layer
	SetLayerContent(layer Layer, img *Image, bounds Bounds, visible bool)
	RemoveLayer(layer Layer)
	MoveToTop(layer Layer)
	HideLayer(layer Layer)
	Resize(extent Extent)

	ActiveLayer() Layer
	SetActiveLayer(layer Layer)
	FindLayer(id string) Layer

	CurrentTime() int
	PlaybackTimeRange() (start, end int)
	ImportAnimation(framePaths []string, startIndex int) error
}
