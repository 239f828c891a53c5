// Package config loads and represents the engine's configuration surface:
// capture, OCR, translation, overlay, performance, pipeline, and plugin
// settings.
package config

// PluginConfig is a single optimizer plugin's on-disk configuration entry.
type PluginConfig struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// RuntimeMode selects whether the pipeline prefers CPU or GPU execution for
// the OCR/translation engines it drives.
type RuntimeMode string

const (
	RuntimeModeAuto RuntimeMode = "auto"
	RuntimeModeCPU  RuntimeMode = "cpu"
	RuntimeModeGPU  RuntimeMode = "gpu"
)

// PerformanceProfile is loaded, saved and reported in the engine's status;
// it does not adjust any other setting.
type PerformanceProfile string

const (
	ProfileQuality     PerformanceProfile = "quality"
	ProfileBalanced    PerformanceProfile = "balanced"
	ProfilePerformance PerformanceProfile = "performance"
)

// QualityFilterMode selects the dictionary quality filter's strictness.
type QualityFilterMode string

const (
	QualityFilterDisabled QualityFilterMode = "disabled"
	QualityFilterBalanced QualityFilterMode = "balanced"
	QualityFilterStrict   QualityFilterMode = "strict"
)

// PositioningStrategy is the configured overlay positioning mode. It is
// loaded and saved with the configuration; the engine does not read it.
type PositioningStrategy string

const (
	PositioningAnchored    PositioningStrategy = "anchored"
	PositioningFixedOffset PositioningStrategy = "fixed_offset"
)

// CaptureConfig is the capture.* configuration surface.
type CaptureConfig struct {
	FPS             float64 `yaml:"fps" json:"fps"`
	Mode            string  `yaml:"mode" json:"mode"`
	Quality         int     `yaml:"quality" json:"quality"`
	Adaptive        bool    `yaml:"adaptive" json:"adaptive"`
	FallbackEnabled bool    `yaml:"fallback_enabled" json:"fallback_enabled"`
}

// OCRConfig is the ocr.* configuration surface.
type OCRConfig struct {
	Engine              string  `yaml:"engine" json:"engine"`
	Language            string  `yaml:"language" json:"language"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
}

// TranslationConfig is the translation.* configuration surface.
type TranslationConfig struct {
	SourceLanguage          string            `yaml:"source_language" json:"source_language"`
	TargetLanguage          string            `yaml:"target_language" json:"target_language"`
	ConfidenceThreshold     float64           `yaml:"confidence_threshold" json:"confidence_threshold"`
	CacheEnabled            bool              `yaml:"cache_enabled" json:"cache_enabled"`
	CacheMaxEntries         int               `yaml:"cache_max_entries" json:"cache_max_entries"`
	QualityFilterEnabled    bool              `yaml:"quality_filter_enabled" json:"quality_filter_enabled"`
	QualityFilterMode       QualityFilterMode `yaml:"quality_filter_mode" json:"quality_filter_mode"`
	DictionaryAutoFlushSize int               `yaml:"dictionary_auto_flush_size" json:"dictionary_auto_flush_size"`
}

// OverlayConfig is the overlay.* configuration surface. Only Enabled and
// DisappearTimeoutSec affect engine behavior directly; the rendering hints
// are passed through to the renderer.
type OverlayConfig struct {
	Enabled             bool                `yaml:"enabled" json:"enabled"`
	AutoHideOnDisappear bool                `yaml:"auto_hide_on_disappear" json:"auto_hide_on_disappear"`
	DisappearTimeoutSec float64             `yaml:"disappear_timeout" json:"disappear_timeout"`
	Opacity             float64             `yaml:"opacity" json:"opacity"`
	FontFamily          string              `yaml:"font_family" json:"font_family"`
	FontSize            int                 `yaml:"font_size" json:"font_size"`
	TextColor           string              `yaml:"text_color" json:"text_color"`
	BackgroundColor     string              `yaml:"background_color" json:"background_color"`
	BorderEnabled       bool                `yaml:"border_enabled" json:"border_enabled"`
	BorderWidth         int                 `yaml:"border_width" json:"border_width"`
	BorderColor         string              `yaml:"border_color" json:"border_color"`
	ShadowEnabled       bool                `yaml:"shadow_enabled" json:"shadow_enabled"`
	AnimationEnabled    bool                `yaml:"animation_enabled" json:"animation_enabled"`
	PositioningStrategy PositioningStrategy `yaml:"positioning_strategy" json:"positioning_strategy"`
}

// PerformanceConfig is the performance.* configuration surface.
type PerformanceConfig struct {
	RuntimeMode           RuntimeMode        `yaml:"runtime_mode" json:"runtime_mode"`
	Profile               PerformanceProfile `yaml:"profile" json:"profile"`
	EnableGPUAcceleration bool               `yaml:"enable_gpu_acceleration" json:"enable_gpu_acceleration"`
	EnableMultithreading  bool               `yaml:"enable_multithreading" json:"enable_multithreading"`
	MaxWorkerThreads      int                `yaml:"max_worker_threads" json:"max_worker_threads"`
	EnableFrameSkip       bool               `yaml:"enable_frame_skip" json:"enable_frame_skip"`
	EnableROIDetection    bool               `yaml:"enable_roi_detection" json:"enable_roi_detection"`
	EnableParallelOCR     bool               `yaml:"enable_parallel_ocr" json:"enable_parallel_ocr"`
	BatchTranslation      bool               `yaml:"batch_translation" json:"batch_translation"`
}

// ParallelWorkersConfig configures one of the pipeline's parallel worker
// groups (capture or translation).
type ParallelWorkersConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Workers int  `yaml:"workers" json:"workers"`
}

// PipelineConfig is the pipeline.* configuration surface.
type PipelineConfig struct {
	EnableOptimizerPlugins bool                  `yaml:"enable_optimizer_plugins" json:"enable_optimizer_plugins"`
	ParallelCapture        ParallelWorkersConfig `yaml:"parallel_capture" json:"parallel_capture"`
	ParallelTranslation    ParallelWorkersConfig `yaml:"parallel_translation" json:"parallel_translation"`
}

// AdvancedConfig is the advanced.* configuration surface.
type AdvancedConfig struct {
	DebugMode            bool `yaml:"debug_mode" json:"debug_mode"`
	EnableMonitoring     bool `yaml:"enable_monitoring" json:"enable_monitoring"`
	ExperimentalFeatures bool `yaml:"experimental_features" json:"experimental_features"`
}

// Config is the engine's complete configuration surface.
type Config struct {
	Capture     CaptureConfig     `yaml:"capture" json:"capture"`
	OCR         OCRConfig         `yaml:"ocr" json:"ocr"`
	Translation TranslationConfig `yaml:"translation" json:"translation"`
	Overlay     OverlayConfig     `yaml:"overlay" json:"overlay"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Pipeline    PipelineConfig    `yaml:"pipeline" json:"pipeline"`
	Advanced    AdvancedConfig    `yaml:"advanced" json:"advanced"`
	Plugins     []PluginConfig    `yaml:"plugins,omitempty" json:"plugins,omitempty"`
}

// Default returns the built-in default configuration.
func Default() Config {
	return Config{
		Capture: CaptureConfig{
			FPS:             15,
			Mode:            "auto",
			Quality:         85,
			Adaptive:        true,
			FallbackEnabled: true,
		},
		OCR: OCRConfig{
			Engine:              "default",
			Language:            "en",
			ConfidenceThreshold: 0.5,
		},
		Translation: TranslationConfig{
			SourceLanguage:          "en",
			TargetLanguage:          "de",
			ConfidenceThreshold:     0.5,
			CacheEnabled:            true,
			CacheMaxEntries:         1000,
			QualityFilterEnabled:    true,
			QualityFilterMode:       QualityFilterBalanced,
			DictionaryAutoFlushSize: 20,
		},
		Overlay: OverlayConfig{
			Enabled:             true,
			AutoHideOnDisappear: true,
			DisappearTimeoutSec: 3.0,
			Opacity:             0.9,
			FontFamily:          "Segoe UI",
			FontSize:            16,
			TextColor:           "#FFFFFF",
			BackgroundColor:     "#000000",
			BorderEnabled:       false,
			BorderWidth:         1,
			BorderColor:         "#000000",
			ShadowEnabled:       true,
			AnimationEnabled:    false,
			PositioningStrategy: PositioningAnchored,
		},
		Performance: PerformanceConfig{
			RuntimeMode:          RuntimeModeAuto,
			Profile:              ProfileBalanced,
			EnableMultithreading: true,
			MaxWorkerThreads:     4,
			EnableFrameSkip:      true,
		},
		Pipeline: PipelineConfig{
			EnableOptimizerPlugins: false,
			ParallelCapture:        ParallelWorkersConfig{Enabled: true, Workers: 1},
			ParallelTranslation:    ParallelWorkersConfig{Enabled: false, Workers: 2},
		},
		Advanced: AdvancedConfig{
			EnableMonitoring: true,
		},
		Plugins: []PluginConfig{},
	}
}
