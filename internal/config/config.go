package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps the size of a config file accepted by Load.
const MaxConfigFileBytes = 64 << 10

// Fixed offscreen surface size. Captures are always this size regardless of
// the camera's native resolution.
const (
	CaptureWidth  = 320
	CaptureHeight = 240
)

// Permission modes.
const (
	PermissionPrompt = "prompt" // ask the person in front of the page
	PermissionGrant  = "grant"  // always allow (kiosk, one-shot CLI)
	PermissionDeny   = "deny"   // never allow
)

// CameraConfig describes the capture device.
// Type selects a concrete implementation ("v4l2" or "synthetic").
type CameraConfig struct {
	Type           string `yaml:"type"`             // "v4l2" or "synthetic"
	Device         string `yaml:"device"`           // e.g. /dev/video0
	WidthPx        int    `yaml:"width_px"`         // requested native width
	HeightPx       int    `yaml:"height_px"`        // requested native height
	FrameTimeoutMs int    `yaml:"frame_timeout_ms"` // max wait for one frame from the device
}

// CaptureConfig holds the offscreen surface and output slot settings.
type CaptureConfig struct {
	Width         int    `yaml:"width"`           // must be 320
	Height        int    `yaml:"height"`          // must be 240
	JPEGQuality   int    `yaml:"jpeg_quality"`    // 1-100
	FieldName     string `yaml:"field_name"`      // hidden form field, e.g. foto_base64
	MinIntervalMs int    `yaml:"min_interval_ms"` // min delay between two captures over HTTP
}

// PermissionConfig selects how camera access requests are answered.
type PermissionConfig struct {
	Mode string `yaml:"mode"` // prompt, grant or deny
}

// IndicatorConfig describes the optional camera-in-use LED.
type IndicatorConfig struct {
	Pin      int  `yaml:"pin"`       // BCM pin, 0 = no indicator
	MockGPIO bool `yaml:"mock_gpio"` // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	PreviewFPS int `yaml:"preview_fps"` // live preview frames pushed to the page per second
}

// Config aggregates all application configuration.
type Config struct {
	Camera     CameraConfig     `yaml:"camera"`
	Capture    CaptureConfig    `yaml:"capture"`
	Permission PermissionConfig `yaml:"permission"`
	Indicator  IndicatorConfig  `yaml:"indicator"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
}

// ValidateConfigPath rejects paths that are empty, escape via "..", are not
// .yaml files, or do not live directly in a "configs" directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path must not contain '..': %s", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	switch c.Camera.Type {
	case "":
		return fmt.Errorf("camera.type is required")
	case "v4l2":
		if c.Camera.Device == "" {
			c.Camera.Device = "/dev/video0"
		}
	case "synthetic":
	default:
		return fmt.Errorf("unsupported camera.type: %s", c.Camera.Type)
	}
	if c.Camera.WidthPx < 0 || c.Camera.HeightPx < 0 {
		return fmt.Errorf("camera size must be >= 0, got %dx%d", c.Camera.WidthPx, c.Camera.HeightPx)
	}
	if c.Camera.WidthPx == 0 {
		c.Camera.WidthPx = 640
	}
	if c.Camera.HeightPx == 0 {
		c.Camera.HeightPx = 480
	}
	if c.Camera.FrameTimeoutMs <= 0 {
		c.Camera.FrameTimeoutMs = 2000
	}

	if c.Capture.Width == 0 {
		c.Capture.Width = CaptureWidth
	}
	if c.Capture.Height == 0 {
		c.Capture.Height = CaptureHeight
	}
	if c.Capture.Width != CaptureWidth || c.Capture.Height != CaptureHeight {
		return fmt.Errorf("capture size is fixed at %dx%d, got %dx%d",
			CaptureWidth, CaptureHeight, c.Capture.Width, c.Capture.Height)
	}
	if c.Capture.JPEGQuality == 0 {
		c.Capture.JPEGQuality = 92 // canvas toDataURL default
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("capture.jpeg_quality must be between 1 and 100, got %d", c.Capture.JPEGQuality)
	}
	if c.Capture.FieldName == "" {
		c.Capture.FieldName = "foto_base64"
	}
	if c.Capture.MinIntervalMs <= 0 {
		c.Capture.MinIntervalMs = 250
	}

	switch c.Permission.Mode {
	case "":
		c.Permission.Mode = PermissionPrompt
	case PermissionPrompt, PermissionGrant, PermissionDeny:
	default:
		return fmt.Errorf("permission.mode must be prompt, grant or deny, got %q", c.Permission.Mode)
	}

	if c.Indicator.Pin < 0 || c.Indicator.Pin > 27 {
		return fmt.Errorf("indicator.pin must be between 0 and 27, got %d", c.Indicator.Pin)
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	if c.Defaults.PreviewFPS <= 0 {
		c.Defaults.PreviewFPS = 10
	}
	if c.Defaults.PreviewFPS > 30 {
		return fmt.Errorf("defaults.preview_fps must be <= 30, got %d", c.Defaults.PreviewFPS)
	}
	return nil
}

// FrameTimeout returns the maximum wait for a single device frame.
func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.Camera.FrameTimeoutMs) * time.Millisecond
}

// CaptureInterval returns the minimum delay between two HTTP captures.
func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(c.Capture.MinIntervalMs) * time.Millisecond
}

// PreviewInterval returns the delay between two preview frames pushed to a page.
func (c *Config) PreviewInterval() time.Duration {
	return time.Second / time.Duration(c.Defaults.PreviewFPS)
}
