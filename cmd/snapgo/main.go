package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/cjeanneret/SnapGo/internal/capture"
	"github.com/cjeanneret/SnapGo/internal/config"
	"github.com/cjeanneret/SnapGo/internal/debug"
	"github.com/cjeanneret/SnapGo/internal/hw/camera"
	"github.com/cjeanneret/SnapGo/internal/hw/gpio"
	"github.com/cjeanneret/SnapGo/internal/hw/indicator"
	"github.com/cjeanneret/SnapGo/internal/metrics"
	"github.com/cjeanneret/SnapGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	outPath := flag.String("out", "-", "one-shot mode: file receiving the photo data URL, - for stdout")
	quality := flag.Int("quality", 0, "override JPEG quality (1-100)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := validateQuality(*quality); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	if *quality != 0 {
		cfg.Capture.JPEGQuality = *quality
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.PrintStruct("Camera config", cfg.Camera)
	debug.PrintStruct("Capture config", cfg.Capture)

	debug.Step(1, "Initializing camera-in-use indicator")
	led, closeLED, err := newIndicatorFromConfig(cfg)
	if err != nil {
		log.Fatalf("init indicator failed: %v", err)
	}
	defer closeLED()

	debug.Step(2, "Initializing camera")
	dev, err := newDeviceFromConfig(cfg)
	if err != nil {
		log.Fatalf("init camera failed: %v", err)
	}
	debug.Value("Camera type", cfg.Camera.Type)
	debug.Value("Camera device", dev.Name())

	port := webPort.port()
	if port == 0 {
		// One-shot: nobody is there to answer a prompt.
		if err := runOnce(ctx, cfg, dev, led, *outPath); err != nil {
			closeLED()
			log.Fatalf("capture failed: %v", err)
		}
		return
	}

	debug.Step(3, "Starting web server")
	broadcaster := web.NewStatusBroadcaster()
	debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

	var webPrompter *web.WebPrompter
	prompter := prompterFor(cfg.Permission.Mode)
	if prompter == nil {
		webPrompter = web.NewWebPrompter(broadcaster)
		prompter = webPrompter
	}

	preview := capture.NewPreview()
	slot := capture.NewFieldSlot(cfg.Capture.FieldName)
	capturer := capture.New(capture.Config{
		Device:      dev,
		Preview:     preview,
		Surface:     capture.NewSurface(),
		Output:      slot,
		Notifier:    broadcaster.Notifier(),
		Prompter:    prompter,
		Indicator:   led,
		Observer:    metrics.Observer{},
		JPEGQuality: cfg.Capture.JPEGQuality,
	})
	defer capturer.ReleaseSession()

	srv := web.NewServer(fmt.Sprintf(":%d", port), web.Deps{
		Broadcaster: broadcaster,
		Capturer:    capturer,
		Preview:     preview,
		Slot:        slot,
		Prompter:    webPrompter,
		Page: web.PageConfig{
			FieldName:      cfg.Capture.FieldName,
			Width:          cfg.Capture.Width,
			Height:         cfg.Capture.Height,
			JPEGQuality:    cfg.Capture.JPEGQuality,
			PermissionMode: cfg.Permission.Mode,
			PreviewFPS:     cfg.Defaults.PreviewFPS,
		},
		CaptureInterval: cfg.CaptureInterval(),
		PreviewInterval: cfg.PreviewInterval(),
	})
	if err := srv.Run(ctx); err != nil {
		log.Printf("web server: %v", err)
	}
}

// runOnce opens the camera, captures a single photo and writes its data URL
// to outPath. The session is released on every path.
func runOnce(ctx context.Context, cfg *config.Config, dev camera.Device, led capture.Indicator, outPath string) error {
	prompter := prompterFor(cfg.Permission.Mode)
	if prompter == nil {
		prompter = capture.AlwaysGrant
	}
	slot := capture.NewFieldSlot(cfg.Capture.FieldName)
	capturer := capture.New(capture.Config{
		Device:      dev,
		Preview:     capture.NewPreview(),
		Surface:     capture.NewSurface(),
		Output:      slot,
		Prompter:    prompter,
		Indicator:   led,
		Observer:    metrics.Observer{},
		JPEGQuality: cfg.Capture.JPEGQuality,
	})
	defer capturer.ReleaseSession()

	debug.Section("One-shot capture")
	res, err := capturer.RequestAccess(ctx).Wait(ctx)
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}
	frame, err := capturer.CapturePhoto()
	if err != nil {
		return err
	}
	debug.Summary("Capture Summary")
	debug.Value("Session", res.Session.ID)
	debug.Value("Size", fmt.Sprintf("%dx%d", frame.Width, frame.Height))
	debug.Value("Encoded bytes", len(frame.DataURL))
	return writeOutput(outPath, slot.Value())
}

// writeOutput writes the data URL followed by a newline; "-" means stdout.
func writeOutput(path, dataURL string) error {
	if path == "-" || path == "" {
		_, err := fmt.Fprintln(os.Stdout, dataURL)
		return err
	}
	if err := os.WriteFile(path, []byte(dataURL+"\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	debug.Info("Photo written to %s", path)
	return nil
}

// prompterFor returns the static prompter for a permission mode, or nil when
// the person in front of the page must be asked.
func prompterFor(mode string) capture.Prompter {
	switch mode {
	case config.PermissionGrant:
		return capture.AlwaysGrant
	case config.PermissionDeny:
		return capture.AlwaysDeny
	default:
		return nil
	}
}

// validateQuality checks the -quality override. Zero means "use config".
func validateQuality(q int) error {
	if q != 0 && (q < 1 || q > 100) {
		return fmt.Errorf("quality must be between 1 and 100, got %d", q)
	}
	return nil
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// newDeviceFromConfig selects a camera implementation based on configuration.
func newDeviceFromConfig(cfg *config.Config) (camera.Device, error) {
	switch cfg.Camera.Type {
	case "v4l2":
		return camera.NewV4L2Device(cfg.Camera.Device, cfg.Camera.WidthPx, cfg.Camera.HeightPx, cfg.FrameTimeout()), nil
	case "synthetic":
		return camera.NewSyntheticDevice(cfg.Camera.WidthPx, cfg.Camera.HeightPx, 30), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}

// newIndicatorFromConfig opens the GPIO driver and the camera-in-use LED.
// Pin 0 disables the indicator.
func newIndicatorFromConfig(cfg *config.Config) (capture.Indicator, func(), error) {
	if cfg.Indicator.Pin == 0 {
		debug.Info("Indicator LED disabled")
		return nil, func() {}, nil
	}
	debug.Value("Mock GPIO", cfg.Indicator.MockGPIO)
	driver, err := gpio.NewDriver(cfg.Indicator.MockGPIO)
	if err != nil {
		return nil, nil, err
	}
	closeDriver := func() {
		if err := driver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}
	led, err := indicator.NewLED(driver, cfg.Indicator.Pin)
	if err != nil {
		closeDriver()
		return nil, nil, fmt.Errorf("indicator LED: %w", err)
	}
	return led, closeDriver, nil
}
