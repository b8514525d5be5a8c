package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_InConfigsDir(t *testing.T) {
	cfgDir := filepath.Join(t.TempDir(), "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"default.yaml", "kiosk mode.yaml", "câmera.yaml"} {
		if err := ValidateConfigPath(filepath.Join(cfgDir, name)); err != nil {
			t.Errorf("ValidateConfigPath(%q) unexpected error: %v", name, err)
		}
	}
}

func TestValidateConfigPath_Rejected(t *testing.T) {
	cases := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"traversal", "../../etc/passwd"},
		{"traversal_inside", "configs/../../../etc/shadow.yaml"},
		{"yml_extension", "configs/default.yml"},
		{"json_extension", "configs/default.json"},
		{"no_extension", "configs/default"},
		{"bare_file", "default.yaml"},
		{"other_dir", "other/default.yaml"},
		{"absolute_tmp", "/tmp/default.yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateConfigPath(tc.path); err == nil {
				t.Errorf("expected error for %q, got nil", tc.path)
			}
		})
	}
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgDir := filepath.Join(t.TempDir(), "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
camera:
  type: "v4l2"
  device: "/dev/video2"
  width_px: 1280
  height_px: 720
  frame_timeout_ms: 1500
capture:
  jpeg_quality: 80
  field_name: "photo"
  min_interval_ms: 500
permission:
  mode: "grant"
indicator:
  pin: 18
  mock_gpio: true
defaults:
  debug_level: 2
  preview_fps: 15
`

func TestLoad_ValidFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Camera.Type != "v4l2" {
		t.Errorf("camera.type = %q, want v4l2", cfg.Camera.Type)
	}
	if cfg.Camera.Device != "/dev/video2" {
		t.Errorf("camera.device = %q, want /dev/video2", cfg.Camera.Device)
	}
	if cfg.Camera.WidthPx != 1280 || cfg.Camera.HeightPx != 720 {
		t.Errorf("camera size = %dx%d, want 1280x720", cfg.Camera.WidthPx, cfg.Camera.HeightPx)
	}
	if cfg.Capture.JPEGQuality != 80 {
		t.Errorf("capture.jpeg_quality = %d, want 80", cfg.Capture.JPEGQuality)
	}
	if cfg.Capture.FieldName != "photo" {
		t.Errorf("capture.field_name = %q, want photo", cfg.Capture.FieldName)
	}
	if cfg.Permission.Mode != PermissionGrant {
		t.Errorf("permission.mode = %q, want grant", cfg.Permission.Mode)
	}
	if cfg.Indicator.Pin != 18 || !cfg.Indicator.MockGPIO {
		t.Errorf("indicator = %+v, want pin 18 mock", cfg.Indicator)
	}
	if cfg.Defaults.PreviewFPS != 15 {
		t.Errorf("preview_fps = %d, want 15", cfg.Defaults.PreviewFPS)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, "camera:\n  type: v4l2\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Camera.Device != "/dev/video0" {
		t.Errorf("device default = %q, want /dev/video0", cfg.Camera.Device)
	}
	if cfg.Camera.WidthPx != 640 || cfg.Camera.HeightPx != 480 {
		t.Errorf("camera size default = %dx%d, want 640x480", cfg.Camera.WidthPx, cfg.Camera.HeightPx)
	}
	if cfg.Camera.FrameTimeoutMs != 2000 {
		t.Errorf("frame_timeout_ms default = %d, want 2000", cfg.Camera.FrameTimeoutMs)
	}
	if cfg.Capture.Width != CaptureWidth || cfg.Capture.Height != CaptureHeight {
		t.Errorf("capture size default = %dx%d, want 320x240", cfg.Capture.Width, cfg.Capture.Height)
	}
	if cfg.Capture.JPEGQuality != 92 {
		t.Errorf("jpeg_quality default = %d, want 92", cfg.Capture.JPEGQuality)
	}
	if cfg.Capture.FieldName != "foto_base64" {
		t.Errorf("field_name default = %q, want foto_base64", cfg.Capture.FieldName)
	}
	if cfg.Capture.MinIntervalMs != 250 {
		t.Errorf("min_interval_ms default = %d, want 250", cfg.Capture.MinIntervalMs)
	}
	if cfg.Permission.Mode != PermissionPrompt {
		t.Errorf("permission.mode default = %q, want prompt", cfg.Permission.Mode)
	}
	if cfg.Defaults.PreviewFPS != 10 {
		t.Errorf("preview_fps default = %d, want 10", cfg.Defaults.PreviewFPS)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty_file", ""},
		{"missing_type", "capture:\n  jpeg_quality: 80\n"},
		{"unknown_type", "camera:\n  type: nikon_d90_gpio\n"},
		{"negative_width", "camera:\n  type: synthetic\n  width_px: -1\n"},
		{"capture_not_320x240", "camera:\n  type: synthetic\ncapture:\n  width: 640\n  height: 480\n"},
		{"quality_too_high", "camera:\n  type: synthetic\ncapture:\n  jpeg_quality: 101\n"},
		{"quality_negative", "camera:\n  type: synthetic\ncapture:\n  jpeg_quality: -5\n"},
		{"bad_permission", "camera:\n  type: synthetic\npermission:\n  mode: maybe\n"},
		{"indicator_pin", "camera:\n  type: synthetic\nindicator:\n  pin: 40\n"},
		{"debug_level", "camera:\n  type: synthetic\ndefaults:\n  debug_level: 9\n"},
		{"preview_fps", "camera:\n  type: synthetic\ndefaults:\n  preview_fps: 120\n"},
		{"invalid_yaml", "{{{{invalid yaml!!!!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Errorf("expected error, got nil")
			}
		})
	}
}

func TestLoad_UnknownFieldsIgnored(t *testing.T) {
	yaml := "camera:\n  type: synthetic\nunknown_section:\n  foo: bar\n"
	if _, err := Load(writeConfig(t, yaml)); err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	path := writeConfig(t, strings.Repeat("#", MaxConfigFileBytes+1))
	if _, err := Load(path); err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "configs", "nonexistent.yaml")); err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

// ---------- Helper methods ----------

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Camera:   CameraConfig{FrameTimeoutMs: 1500},
		Capture:  CaptureConfig{MinIntervalMs: 250},
		Defaults: DefaultsConfig{PreviewFPS: 10},
	}
	if got := cfg.FrameTimeout(); got != 1500*time.Millisecond {
		t.Errorf("FrameTimeout() = %v, want 1.5s", got)
	}
	if got := cfg.CaptureInterval(); got != 250*time.Millisecond {
		t.Errorf("CaptureInterval() = %v, want 250ms", got)
	}
	if got := cfg.PreviewInterval(); got != 100*time.Millisecond {
		t.Errorf("PreviewInterval() = %v, want 100ms", got)
	}
}
