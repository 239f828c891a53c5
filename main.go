package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"overlaytranslate/app/config"
	"overlaytranslate/app/engine"
	"overlaytranslate/app/engineclient"
	"overlaytranslate/app/types"
)

// regionFlag collects repeated -region=x,y,w,h flags into capture regions.
// Concrete screen-capture backends and monitor enumeration are supplied by
// the host platform, not this binary; a region here is just the rectangle
// to poll.
type regionFlag struct {
	regions []types.CaptureRegion
}

func (f *regionFlag) String() string {
	names := make([]string, len(f.regions))
	for i, r := range f.regions {
		names[i] = r.Name
	}
	return strings.Join(names, ",")
}

func (f *regionFlag) Set(value string) error {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return fmt.Errorf("region must be x,y,width,height, got %q", value)
	}
	nums := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("region %q: %w", value, err)
		}
		nums[i] = n
	}
	id := fmt.Sprintf("region-%d", len(f.regions)+1)
	f.regions = append(f.regions, types.CaptureRegion{
		RegionID: id,
		Name:     id,
		Bounds:   types.Rectangle{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]},
		Enabled:  true,
	})
	return nil
}

// noopRenderer is the default OverlayRenderer when no windowing integration
// is wired in: overlay lifecycle events are only logged. A real renderer
// lives outside this module, same as the capture backend and OCR/
// translation engines.
type noopRenderer struct{}

func (noopRenderer) ShowOverlay(ov types.TrackedOverlay) error {
	log.Info().Str("event", "[OVERLAY_SHOW]").Str("overlay_id", ov.ID).Str("text", ov.Text).Msg("overlay shown (no renderer configured)")
	return nil
}

func (noopRenderer) HideOverlay(overlayID string) error {
	log.Info().Str("event", "[OVERLAY_HIDE]").Str("overlay_id", overlayID).Msg("overlay hidden (no renderer configured)")
	return nil
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (yaml); ignored: configuration is always loaded from the platform config directory")
		pluginsDir  = flag.String("plugins-dir", "", "directory to discover optimizer plugin manifests from")
		ocrExecPath = flag.String("ocr-exec", "", "path to an executable implementing the OCR subprocess protocol")
		translateExecPath = flag.String("translate-exec", "", "path to an executable implementing the translation subprocess protocol")
		verbose = flag.Bool("verbose", false, "enable debug-level logging")
		regions regionFlag
	)
	flag.Var(&regions, "region", "capture region as x,y,width,height; may be repeated")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	log.Logger = zerolog.New(console).With().Timestamp().Logger()
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfgService := config.NewService()
	cfg, err := cfgService.Load()
	if err != nil {
		log.Fatal().Str("event", "[CONFIG_LOAD_FAILED]").Err(err).Msg("could not load configuration")
	}
	if *configPath != "" {
		log.Warn().Str("event", "[CONFIG_PATH_IGNORED]").Msg("explicit -config path overrides are not yet supported by config.Service; using the platform default location")
	}

	client := engineclient.NewSubprocessClient(*ocrExecPath, *translateExecPath)

	eng, err := engine.New(engine.Options{
		Config:         cfg,
		CaptureBackend: &unconfiguredBackend{},
		Client:         client,
		Renderer:       noopRenderer{},
		PluginsDir:     *pluginsDir,
	})
	if err != nil {
		log.Fatal().Str("event", "[ENGINE_INIT_FAILED]").Err(err).Msg("failed to construct translation engine")
	}

	for _, region := range regions.regions {
		if err := eng.AddRegion(region); err != nil {
			log.Fatal().Str("event", "[REGION_ADD_FAILED]").Str("region_id", region.RegionID).Err(err).Msg("failed to register capture region")
		}
	}
	if len(regions.regions) == 0 {
		log.Warn().Str("event", "[NO_REGIONS_CONFIGURED]").Msg("no -region flags given; engine will start with no active capture regions")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		log.Fatal().Str("event", "[ENGINE_START_FAILED]").Err(err).Msg("failed to start translation engine")
	}
	log.Info().Str("event", "[MAIN_READY]").Int("regions", len(regions.regions)).Msg("screen translation engine running, press Ctrl+C to stop")

	<-ctx.Done()
	log.Info().Str("event", "[MAIN_SHUTTING_DOWN]").Msg("shutdown signal received")
	eng.Stop()
}

// unconfiguredBackend is the default capture.Backend: it always fails. A
// real implementation (desktop duplication, X11, Quartz, etc.) must be
// supplied by platform-specific integration code outside this module.
type unconfiguredBackend struct{}

func (unconfiguredBackend) CaptureFrame(region types.CaptureRegion) (*types.Frame, error) {
	return nil, fmt.Errorf("no capture backend configured for region %q; wire a platform capture.Backend implementation", region.RegionID)
}
