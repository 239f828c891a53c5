package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Service manages reading and writing the engine's configuration file.
type Service struct{}

// NewService constructs a configuration Service.
func NewService() *Service {
	return &Service{}
}

// Load returns the effective configuration (defaults overlaid with file
// overrides if any).
func (s *Service) Load() (Config, error) {
	cfg := Default()
	path, err := configFilePath()
	if err != nil {
		return cfg, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	return GetEffectiveConfig(), nil
}

// Save persists only the fields of in that differ from defaults, so that a
// config file only ever records explicit overrides.
func (s *Service) Save(in Config) error {
	def := Default()
	data := make(map[string]any)

	if capture := diffCapture(in.Capture, def.Capture); len(capture) > 0 {
		data["capture"] = capture
	}
	if ocr := diffOCR(in.OCR, def.OCR); len(ocr) > 0 {
		data["ocr"] = ocr
	}
	if translation := diffTranslation(in.Translation, def.Translation); len(translation) > 0 {
		data["translation"] = translation
	}
	if overlay := diffOverlay(in.Overlay, def.Overlay); len(overlay) > 0 {
		data["overlay"] = overlay
	}
	if performance := diffPerformance(in.Performance, def.Performance); len(performance) > 0 {
		data["performance"] = performance
	}
	if pipeline := diffPipeline(in.Pipeline, def.Pipeline); len(pipeline) > 0 {
		data["pipeline"] = pipeline
	}
	if advanced := diffAdvanced(in.Advanced, def.Advanced); len(advanced) > 0 {
		data["advanced"] = advanced
	}
	if len(in.Plugins) > 0 {
		data["plugins"] = in.Plugins
	}

	path, err := configFilePath()
	if err != nil {
		return err
	}

	if len(data) == 0 {
		if _, statErr := os.Stat(path); statErr == nil {
			_ = os.Remove(path)
		}
		return nil
	}

	b, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func diffCapture(in, def CaptureConfig) map[string]any {
	d := make(map[string]any)
	if in.FPS != def.FPS {
		d["fps"] = in.FPS
	}
	if in.Mode != def.Mode {
		d["mode"] = in.Mode
	}
	if in.Quality != def.Quality {
		d["quality"] = in.Quality
	}
	if in.Adaptive != def.Adaptive {
		d["adaptive"] = in.Adaptive
	}
	if in.FallbackEnabled != def.FallbackEnabled {
		d["fallback_enabled"] = in.FallbackEnabled
	}
	return d
}

func diffOCR(in, def OCRConfig) map[string]any {
	d := make(map[string]any)
	if in.Engine != def.Engine {
		d["engine"] = in.Engine
	}
	if in.Language != def.Language {
		d["language"] = in.Language
	}
	if in.ConfidenceThreshold != def.ConfidenceThreshold {
		d["confidence_threshold"] = in.ConfidenceThreshold
	}
	return d
}

func diffTranslation(in, def TranslationConfig) map[string]any {
	d := make(map[string]any)
	if in.SourceLanguage != def.SourceLanguage {
		d["source_language"] = in.SourceLanguage
	}
	if in.TargetLanguage != def.TargetLanguage {
		d["target_language"] = in.TargetLanguage
	}
	if in.ConfidenceThreshold != def.ConfidenceThreshold {
		d["confidence_threshold"] = in.ConfidenceThreshold
	}
	if in.CacheEnabled != def.CacheEnabled {
		d["cache_enabled"] = in.CacheEnabled
	}
	if in.QualityFilterEnabled != def.QualityFilterEnabled {
		d["quality_filter_enabled"] = in.QualityFilterEnabled
	}
	if in.QualityFilterMode != def.QualityFilterMode {
		d["quality_filter_mode"] = string(in.QualityFilterMode)
	}
	if in.CacheMaxEntries != def.CacheMaxEntries {
		d["cache_max_entries"] = in.CacheMaxEntries
	}
	if in.DictionaryAutoFlushSize != def.DictionaryAutoFlushSize {
		d["dictionary_auto_flush_size"] = in.DictionaryAutoFlushSize
	}
	return d
}

func diffOverlay(in, def OverlayConfig) map[string]any {
	d := make(map[string]any)
	if in.Enabled != def.Enabled {
		d["enabled"] = in.Enabled
	}
	if in.AutoHideOnDisappear != def.AutoHideOnDisappear {
		d["auto_hide_on_disappear"] = in.AutoHideOnDisappear
	}
	if in.DisappearTimeoutSec != def.DisappearTimeoutSec {
		d["disappear_timeout"] = in.DisappearTimeoutSec
	}
	if in.Opacity != def.Opacity {
		d["opacity"] = in.Opacity
	}
	if in.FontFamily != def.FontFamily {
		d["font_family"] = in.FontFamily
	}
	if in.FontSize != def.FontSize {
		d["font_size"] = in.FontSize
	}
	if in.TextColor != def.TextColor {
		d["text_color"] = in.TextColor
	}
	if in.BackgroundColor != def.BackgroundColor {
		d["background_color"] = in.BackgroundColor
	}
	if in.BorderEnabled != def.BorderEnabled {
		d["border_enabled"] = in.BorderEnabled
	}
	if in.BorderWidth != def.BorderWidth {
		d["border_width"] = in.BorderWidth
	}
	if in.BorderColor != def.BorderColor {
		d["border_color"] = in.BorderColor
	}
	if in.ShadowEnabled != def.ShadowEnabled {
		d["shadow_enabled"] = in.ShadowEnabled
	}
	if in.AnimationEnabled != def.AnimationEnabled {
		d["animation_enabled"] = in.AnimationEnabled
	}
	if in.PositioningStrategy != def.PositioningStrategy {
		d["positioning_strategy"] = string(in.PositioningStrategy)
	}
	return d
}

func diffPerformance(in, def PerformanceConfig) map[string]any {
	d := make(map[string]any)
	if in.RuntimeMode != def.RuntimeMode {
		d["runtime_mode"] = string(in.RuntimeMode)
	}
	if in.Profile != def.Profile {
		d["profile"] = string(in.Profile)
	}
	if in.EnableGPUAcceleration != def.EnableGPUAcceleration {
		d["enable_gpu_acceleration"] = in.EnableGPUAcceleration
	}
	if in.EnableMultithreading != def.EnableMultithreading {
		d["enable_multithreading"] = in.EnableMultithreading
	}
	if in.MaxWorkerThreads != def.MaxWorkerThreads {
		d["max_worker_threads"] = in.MaxWorkerThreads
	}
	if in.EnableFrameSkip != def.EnableFrameSkip {
		d["enable_frame_skip"] = in.EnableFrameSkip
	}
	if in.EnableROIDetection != def.EnableROIDetection {
		d["enable_roi_detection"] = in.EnableROIDetection
	}
	if in.EnableParallelOCR != def.EnableParallelOCR {
		d["enable_parallel_ocr"] = in.EnableParallelOCR
	}
	if in.BatchTranslation != def.BatchTranslation {
		d["batch_translation"] = in.BatchTranslation
	}
	return d
}

func diffPipeline(in, def PipelineConfig) map[string]any {
	d := make(map[string]any)
	if in.EnableOptimizerPlugins != def.EnableOptimizerPlugins {
		d["enable_optimizer_plugins"] = in.EnableOptimizerPlugins
	}
	if in.ParallelCapture != def.ParallelCapture {
		d["parallel_capture"] = map[string]any{
			"enabled": in.ParallelCapture.Enabled,
			"workers": in.ParallelCapture.Workers,
		}
	}
	if in.ParallelTranslation != def.ParallelTranslation {
		d["parallel_translation"] = map[string]any{
			"enabled": in.ParallelTranslation.Enabled,
			"workers": in.ParallelTranslation.Workers,
		}
	}
	return d
}

func diffAdvanced(in, def AdvancedConfig) map[string]any {
	d := make(map[string]any)
	if in.DebugMode != def.DebugMode {
		d["debug_mode"] = in.DebugMode
	}
	if in.EnableMonitoring != def.EnableMonitoring {
		d["enable_monitoring"] = in.EnableMonitoring
	}
	if in.ExperimentalFeatures != def.ExperimentalFeatures {
		d["experimental_features"] = in.ExperimentalFeatures
	}
	return d
}

// AddPlugin validates a plugin manifest at path and registers it, returning
// the newly created PluginConfig.
func (s *Service) AddPlugin(path string) (*PluginConfig, error) {
	if path == "" {
		return nil, errors.New("plugin path cannot be empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("plugin path does not exist")
		}
		return nil, err
	}

	cfg, err := s.Load()
	if err != nil {
		return nil, err
	}
	for _, p := range cfg.Plugins {
		if p.Path == path {
			return nil, errors.New("plugin already registered at this path")
		}
	}

	pluginDir := path
	if !info.IsDir() {
		pluginDir = filepath.Dir(path)
	}
	manifestPath := filepath.Join(pluginDir, "plugin.yml")
	manifestData, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("plugin.yml not found in plugin directory")
		}
		return nil, err
	}

	var manifest struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	}
	if err := yaml.Unmarshal(manifestData, &manifest); err != nil {
		return nil, errors.New("invalid plugin.yml format")
	}
	if manifest.ID == "" {
		return nil, errors.New("plugin.yml missing required field: id")
	}
	for _, p := range cfg.Plugins {
		if p.ID == manifest.ID {
			return nil, fmt.Errorf("plugin with ID %s already registered", manifest.ID)
		}
	}

	newPlugin := PluginConfig{
		ID:      manifest.ID,
		Name:    manifest.Name,
		Enabled: true,
		Path:    path,
	}
	cfg.Plugins = append(cfg.Plugins, newPlugin)
	if err := s.Save(cfg); err != nil {
		return nil, err
	}
	return &newPlugin, nil
}

// RemovePlugin removes the plugin registered at path.
func (s *Service) RemovePlugin(path string) error {
	cfg, err := s.Load()
	if err != nil {
		return err
	}
	found := false
	remaining := make([]PluginConfig, 0, len(cfg.Plugins))
	for _, p := range cfg.Plugins {
		if p.Path == path {
			found = true
			continue
		}
		remaining = append(remaining, p)
	}
	if !found {
		return errors.New("plugin not found")
	}
	cfg.Plugins = remaining
	return s.Save(cfg)
}

// TogglePlugin enables or disables the plugin registered at path.
func (s *Service) TogglePlugin(path string, enabled bool) error {
	cfg, err := s.Load()
	if err != nil {
		return err
	}
	found := false
	for i := range cfg.Plugins {
		if cfg.Plugins[i].Path == path {
			cfg.Plugins[i].Enabled = enabled
			found = true
			break
		}
	}
	if !found {
		return errors.New("plugin not found")
	}
	return s.Save(cfg)
}
