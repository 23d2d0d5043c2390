package canvas

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemDocument is an in-memory Document implementation. It backs the demo
// binary, where the editor host syncs document state through the API, and
// serves as the document fake in tests.
type MemDocument struct {
	mu          sync.Mutex
	extent      Extent
	filename    string
	active      bool
	colorModeOK bool
	colorMsg    string
	selection   *Bounds
	layers      []*MemLayer
	activeLayer *MemLayer
	currentTime int
	rangeStart  int
	rangeEnd    int
	imports     [][]string
}

type MemLayer struct {
	id        string
	name      string
	locked    bool
	hidden    bool
	visible   bool
	bounds    Bounds
	vector    bool
	svg       string
	animated  bool
	keyframes map[int]bool
	content   *Image
}

func NewMemDocument(extent Extent) *MemDocument {
	return &MemDocument{
		extent:      extent,
		active:      true,
		colorModeOK: true,
	}
}

func (d *MemDocument) Extent() Extent   { d.mu.Lock(); defer d.mu.Unlock(); return d.extent }
func (d *MemDocument) Filename() string { d.mu.Lock(); defer d.mu.Unlock(); return d.filename }
func (d *MemDocument) IsActive() bool   { d.mu.Lock(); defer d.mu.Unlock(); return d.active }

func (d *MemDocument) CheckColorMode() (bool, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.colorModeOK, d.colorMsg
}

func (d *MemDocument) SetFilename(name string) { d.mu.Lock(); d.filename = name; d.mu.Unlock() }
func (d *MemDocument) SetActive(active bool)   { d.mu.Lock(); d.active = active; d.mu.Unlock() }
func (d *MemDocument) SetColorMode(ok bool, msg string) {
	d.mu.Lock()
	d.colorModeOK, d.colorMsg = ok, msg
	d.mu.Unlock()
}

func (d *MemDocument) SetSelection(b *Bounds) { d.mu.Lock(); d.selection = b; d.mu.Unlock() }

func (d *MemDocument) SelectionBounds() (Bounds, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selection == nil {
		return Bounds{}, false
	}
	return *d.selection, true
}

func (d *MemDocument) CreateMaskFromSelection(opts SelectionOptions) *Mask {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selection == nil {
		return nil
	}
	b := *d.selection
	grow := int(opts.Grow * float64(max(b.Width, b.Height)))
	b = b.Grow(grow).Clamp(d.extent)
	if opts.MinSize > 0 && (b.Width < opts.MinSize || b.Height < opts.MinSize) {
		b.Width = max(b.Width, opts.MinSize)
		b.Height = max(b.Height, opts.MinSize)
		b = b.Clamp(d.extent)
	}
	if opts.Square {
		side := max(b.Width, b.Height)
		b.Width, b.Height = side, side
		b = b.Clamp(d.extent)
	}
	return &Mask{Bounds: b, Data: []byte{1}}
}

func (d *MemDocument) GetImage(bounds Bounds, excludeLayers []string) *Image {
	return &Image{
		Extent: bounds.Extent(),
		Data:   []byte(fmt.Sprintf("image%s", bounds)),
	}
}

func (d *MemDocument) GetLayerImage(layer Layer, bounds Bounds, frame int) *Image {
	return &Image{
		Extent: bounds.Extent(),
		Data:   []byte(fmt.Sprintf("layer:%s@%d%s", layer.ID(), frame, bounds)),
	}
}

func (d *MemDocument) InsertLayer(name string, img *Image, bounds Bounds) Layer {
	d.mu.Lock()
	defer d.mu.Unlock()
	layer := &MemLayer{
		id:      uuid.NewString(),
		name:    name,
		bounds:  bounds,
		visible: true,
		content: img,
	}
	d.layers = append(d.layers, layer)
	return layer
}

func (d *MemDocument) InsertVectorLayer(name string, svg string) Layer {
	d.mu.Lock()
	defer d.mu.Unlock()
	layer := &MemLayer{
		id:      uuid.NewString(),
		name:    name,
		visible: true,
		vector:  true,
		svg:     svg,
	}
	d.layers = append(d.layers, layer)
	return layer
}

func (d *MemDocument) SetLayerContent(layer Layer, img *Image, bounds Bounds, visible bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := layer.(*MemLayer); ok {
		l.content = img
		l.bounds = bounds
		l.visible = visible
	}
}

func (d *MemDocument) RemoveLayer(layer Layer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range d.layers {
		if l.id == layer.ID() {
			d.layers = append(d.layers[:i], d.layers[i+1:]...)
			if d.activeLayer == l {
				d.activeLayer = nil
			}
			return
		}
	}
}

func (d *MemDocument) MoveToTop(layer Layer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range d.layers {
		if l.id == layer.ID() {
			d.layers = append(d.layers[:i], d.layers[i+1:]...)
			d.layers = append(d.layers, l)
			return
		}
	}
}

func (d *MemDocument) HideLayer(layer Layer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := layer.(*MemLayer); ok {
		l.hidden = true
	}
}

func (d *MemDocument) Resize(extent Extent) {
	d.mu.Lock()
	d.extent = extent
	d.mu.Unlock()
}

func (d *MemDocument) ActiveLayer() Layer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.activeLayer == nil {
		return nil
	}
	return d.activeLayer
}

func (d *MemDocument) SetActiveLayer(layer Layer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := layer.(*MemLayer); ok {
		d.activeLayer = l
	}
}

func (d *MemDocument) FindLayer(id string) Layer {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.layers {
		if l.id == id {
			return l
		}
	}
	return nil
}

func (d *MemDocument) Layers() []Layer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Layer, len(d.layers))
	for i, l := range d.layers {
		out[i] = l
	}
	return out
}

func (d *MemDocument) CurrentTime() int { d.mu.Lock(); defer d.mu.Unlock(); return d.currentTime }

func (d *MemDocument) SetCurrentTime(t int) { d.mu.Lock(); d.currentTime = t; d.mu.Unlock() }

func (d *MemDocument) PlaybackTimeRange() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rangeStart, d.rangeEnd
}

func (d *MemDocument) SetPlaybackTimeRange(start, end int) {
	d.mu.Lock()
	d.rangeStart, d.rangeEnd = start, end
	d.mu.Unlock()
}

func (d *MemDocument) ImportAnimation(framePaths []string, startIndex int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	frames := make([]string, len(framePaths))
	copy(frames, framePaths)
	d.imports = append(d.imports, frames)
	layer := &MemLayer{
		id:       uuid.NewString(),
		name:     fmt.Sprintf("animation %d+%d", startIndex, len(frames)),
		visible:  true,
		animated: true,
	}
	d.layers = append(d.layers, layer)
	d.activeLayer = layer
	return nil
}

// ImportedAnimations returns the frame sequences passed to ImportAnimation,
// in call order.
func (d *MemDocument) ImportedAnimations() [][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.imports
}

func (l *MemLayer) ID() string            { return l.id }
func (l *MemLayer) Name() string          { return l.name }
func (l *MemLayer) SetName(name string)   { l.name = name }
func (l *MemLayer) SetLocked(locked bool) { l.locked = locked }
func (l *MemLayer) Bounds() Bounds        { return l.bounds }
func (l *MemLayer) Animated() bool        { return l.animated }

func (l *MemLayer) HasKeyframeAt(frame int) bool {
	return l.keyframes[frame]
}

func (l *MemLayer) Locked() bool    { return l.locked }
func (l *MemLayer) Hidden() bool    { return l.hidden }
func (l *MemLayer) Visible() bool   { return l.visible }
func (l *MemLayer) Vector() bool    { return l.vector }
func (l *MemLayer) SVG() string     { return l.svg }
func (l *MemLayer) Content() *Image { return l.content }

func (l *MemLayer) SetAnimated(animated bool) { l.animated = animated }

func (l *MemLayer) SetKeyframe(frame int) {
	if l.keyframes == nil {
		l.keyframes = make(map[int]bool)
	}
	l.keyframes[frame] = true
}

func (l *MemLayer) SetBounds(b Bounds) { l.bounds = b }
