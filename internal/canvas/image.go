package canvas

import "os"

// Image is an encoded image blob together with its pixel extent. The
// orchestrator never decodes pixel data; results arrive from the backend
// already encoded for the region they were generated for, and are passed
// through to the document or written to disk verbatim.
type Image struct {
	Extent Extent
	Data   []byte
}

func (img *Image) Save(path string) error {
	return os.WriteFile(path, img.Data, 0o644)
}

// Mask is selection coverage for a canvas region. Bounds are always
// expressed relative to the full canvas.
type Mask struct {
	Bounds Bounds
	Data   []byte
}
