package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
)

// JPEGDataURLPrefix starts every value written to the output slot.
const JPEGDataURLPrefix = "data:image/jpeg;base64,"

// EncodeJPEGDataURL encodes img as a base64 JPEG data URL.
func EncodeJPEGDataURL(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return JPEGDataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeJPEGDataURL parses a value produced by EncodeJPEGDataURL.
func DecodeJPEGDataURL(s string) (image.Image, error) {
	payload, ok := strings.CutPrefix(s, JPEGDataURLPrefix)
	if !ok {
		return nil, fmt.Errorf("not a JPEG data URL")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}
	return img, nil
}
