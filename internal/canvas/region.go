package canvas

// ResolveRegion computes the rectangle of the canvas that a generation job
// reads from and writes its result back into. The result is stored on the
// job, so the same rectangle is reused when the finished image is inserted.
//
// With no mask and full strength the whole canvas is regenerated. With a
// mask the region covers the mask plus a margin of surrounding context,
// clamped to the canvas. Partial strength without a mask also uses the full
// canvas: the entire image is the context. Pure function, no side effects.
func ResolveRegion(extent Extent, mask *Bounds, strength float64, padding float64) Bounds {
	if mask == nil {
		return FullBounds(extent)
	}
	margin := int(padding * float64(max(mask.Width, mask.Height)))
	return mask.Grow(margin).Clamp(extent)
}
