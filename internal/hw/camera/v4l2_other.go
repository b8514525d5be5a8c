//go:build !linux

package camera

import (
	"context"
	"fmt"
	"time"
)

// V4L2Device is only available on Linux; elsewhere Open reports ErrUnsupported.
type V4L2Device struct {
	path string
}

func NewV4L2Device(path string, width, height int, frameTimeout time.Duration) *V4L2Device {
	return &V4L2Device{path: path}
}

func (d *V4L2Device) Name() string { return d.path }

func (d *V4L2Device) Open(ctx context.Context) (Stream, error) {
	return nil, fmt.Errorf("%w: V4L2 requires Linux", ErrUnsupported)
}
