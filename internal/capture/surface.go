package capture

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Fixed size of the offscreen surface and of every captured photo.
const (
	Width  = 320
	Height = 240
)

// Surface is the offscreen drawing buffer a frame is copied into before encoding.
type Surface struct {
	img *image.RGBA
}

// NewSurface returns a blank 320x240 surface.
func NewSurface() *Surface {
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, Width, Height))}
}

// Draw stretches src over the whole surface, whatever its native size.
func (s *Surface) Draw(src image.Image) {
	xdraw.ApproxBiLinear.Scale(s.img, s.img.Bounds(), src, src.Bounds(), xdraw.Src, nil)
}

// DataURL encodes the surface content as a JPEG data URL.
func (s *Surface) DataURL(quality int) (string, error) {
	return EncodeJPEGDataURL(s.img, quality)
}

// Image exposes the underlying buffer.
func (s *Surface) Image() *image.RGBA { return s.img }
