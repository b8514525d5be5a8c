package camera

import (
	"fmt"
	"image"
)

// yuyvToImage wraps a packed YUYV 4:2:2 buffer as an image.YCbCr. Rows may
// be padded past width*2 bytes; the stride is taken from the buffer length.
func yuyvToImage(data []byte, width, height int) (*image.YCbCr, error) {
	if width <= 0 || height <= 0 || width%2 != 0 {
		return nil, fmt.Errorf("invalid YUYV frame size %dx%d", width, height)
	}
	stride := len(data) / height
	if stride < width*2 {
		return nil, fmt.Errorf("%w: short YUYV frame: %d bytes for %dx%d", ErrBadFrame, len(data), width, height)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := 0; y < height; y++ {
		row := data[y*stride : y*stride+width*2]
		for x := 0; x < width; x += 2 {
			i := x * 2
			img.Y[y*img.YStride+x] = row[i]
			img.Y[y*img.YStride+x+1] = row[i+2]
			c := y*img.CStride + x/2
			img.Cb[c] = row[i+1]
			img.Cr[c] = row[i+3]
		}
	}
	return img, nil
}
