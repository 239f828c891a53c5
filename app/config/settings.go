package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GetEffectiveConfig returns the effective configuration: built-in defaults
// overlaid with whatever the on-disk config file overrides. Any error
// reading or parsing the file is swallowed and defaults are returned, mirror
// of how the rest of the engine tolerates a missing/corrupt config rather
// than refusing to start.
func GetEffectiveConfig() Config {
	cfg := Default()
	path, err := configFilePath()
	if err != nil {
		return cfg
	}
	if _, err := os.Stat(path); err != nil {
		return cfg
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return cfg
	}
	applyCaptureOverrides(&cfg.Capture, sectionMap(m, "capture"))
	applyOCROverrides(&cfg.OCR, sectionMap(m, "ocr"))
	applyTranslationOverrides(&cfg.Translation, sectionMap(m, "translation"))
	applyOverlayOverrides(&cfg.Overlay, sectionMap(m, "overlay"))
	applyPerformanceOverrides(&cfg.Performance, sectionMap(m, "performance"))
	applyPipelineOverrides(&cfg.Pipeline, sectionMap(m, "pipeline"))
	applyAdvancedOverrides(&cfg.Advanced, sectionMap(m, "advanced"))
	if v, ok := m["plugins"]; ok {
		if arr, ok := v.([]interface{}); ok {
			cfg.Plugins = parsePlugins(arr)
		}
	}
	return cfg
}

// sectionMap extracts a nested section from a decoded YAML document as a
// map[string]any, returning nil if the section is absent or not a mapping.
func sectionMap(m map[string]any, key string) map[string]any {
	v, ok := m[key]
	if !ok {
		return nil
	}
	sub, ok := v.(map[string]any)
	if ok {
		return sub
	}
	// yaml.v3 decodes mapping nodes as map[string]interface{} only when the
	// target is `any`; guard against the alternate map[interface{}]interface{}
	// shape some decoders produce.
	if subIface, ok := v.(map[interface{}]interface{}); ok {
		out := make(map[string]any, len(subIface))
		for k, vv := range subIface {
			if ks, ok := k.(string); ok {
				out[ks] = vv
			}
		}
		return out
	}
	return nil
}

func applyCaptureOverrides(c *CaptureConfig, m map[string]any) {
	if v, ok := m["fps"]; ok {
		if vf, ok := toFloat(v); ok && vf > 0 {
			c.FPS = vf
		}
	}
	if v, ok := m["mode"]; ok {
		if vs, ok := v.(string); ok {
			c.Mode = vs
		}
	}
	if v, ok := m["quality"]; ok {
		if vi, ok := toInt(v); ok {
			c.Quality = vi
		}
	}
	if v, ok := m["adaptive"]; ok {
		if vb, ok := v.(bool); ok {
			c.Adaptive = vb
		}
	}
	if v, ok := m["fallback_enabled"]; ok {
		if vb, ok := v.(bool); ok {
			c.FallbackEnabled = vb
		}
	}
}

func applyOCROverrides(c *OCRConfig, m map[string]any) {
	if v, ok := m["engine"]; ok {
		if vs, ok := v.(string); ok {
			c.Engine = vs
		}
	}
	if v, ok := m["language"]; ok {
		if vs, ok := v.(string); ok {
			c.Language = vs
		}
	}
	if v, ok := m["confidence_threshold"]; ok {
		if vf, ok := toFloat(v); ok {
			c.ConfidenceThreshold = vf
		}
	}
}

func applyTranslationOverrides(c *TranslationConfig, m map[string]any) {
	if v, ok := m["source_language"]; ok {
		if vs, ok := v.(string); ok {
			c.SourceLanguage = vs
		}
	}
	if v, ok := m["target_language"]; ok {
		if vs, ok := v.(string); ok {
			c.TargetLanguage = vs
		}
	}
	if v, ok := m["confidence_threshold"]; ok {
		if vf, ok := toFloat(v); ok {
			c.ConfidenceThreshold = vf
		}
	}
	if v, ok := m["cache_enabled"]; ok {
		if vb, ok := v.(bool); ok {
			c.CacheEnabled = vb
		}
	}
	if v, ok := m["quality_filter_enabled"]; ok {
		if vb, ok := v.(bool); ok {
			c.QualityFilterEnabled = vb
		}
	}
	if v, ok := m["quality_filter_mode"]; ok {
		if vs, ok := v.(string); ok {
			c.QualityFilterMode = QualityFilterMode(vs)
		}
	}
	if v, ok := m["cache_max_entries"]; ok {
		if vi, ok := toInt(v); ok {
			c.CacheMaxEntries = vi
		}
	}
	if v, ok := m["dictionary_auto_flush_size"]; ok {
		if vi, ok := toInt(v); ok {
			c.DictionaryAutoFlushSize = vi
		}
	}
}

func applyOverlayOverrides(c *OverlayConfig, m map[string]any) {
	if v, ok := m["enabled"]; ok {
		if vb, ok := v.(bool); ok {
			c.Enabled = vb
		}
	}
	if v, ok := m["auto_hide_on_disappear"]; ok {
		if vb, ok := v.(bool); ok {
			c.AutoHideOnDisappear = vb
		}
	}
	if v, ok := m["disappear_timeout"]; ok {
		if vf, ok := toFloat(v); ok {
			c.DisappearTimeoutSec = vf
		}
	}
	if v, ok := m["opacity"]; ok {
		if vf, ok := toFloat(v); ok {
			c.Opacity = vf
		}
	}
	if v, ok := m["font_family"]; ok {
		if vs, ok := v.(string); ok {
			c.FontFamily = vs
		}
	}
	if v, ok := m["font_size"]; ok {
		if vi, ok := toInt(v); ok {
			c.FontSize = vi
		}
	}
	if v, ok := m["text_color"]; ok {
		if vs, ok := v.(string); ok {
			c.TextColor = vs
		}
	}
	if v, ok := m["background_color"]; ok {
		if vs, ok := v.(string); ok {
			c.BackgroundColor = vs
		}
	}
	if v, ok := m["border_enabled"]; ok {
		if vb, ok := v.(bool); ok {
			c.BorderEnabled = vb
		}
	}
	if v, ok := m["border_width"]; ok {
		if vi, ok := toInt(v); ok {
			c.BorderWidth = vi
		}
	}
	if v, ok := m["border_color"]; ok {
		if vs, ok := v.(string); ok {
			c.BorderColor = vs
		}
	}
	if v, ok := m["shadow_enabled"]; ok {
		if vb, ok := v.(bool); ok {
			c.ShadowEnabled = vb
		}
	}
	if v, ok := m["animation_enabled"]; ok {
		if vb, ok := v.(bool); ok {
			c.AnimationEnabled = vb
		}
	}
	if v, ok := m["positioning_strategy"]; ok {
		if vs, ok := v.(string); ok {
			c.PositioningStrategy = PositioningStrategy(vs)
		}
	}
}

func applyPerformanceOverrides(c *PerformanceConfig, m map[string]any) {
	if v, ok := m["runtime_mode"]; ok {
		if vs, ok := v.(string); ok {
			c.RuntimeMode = RuntimeMode(vs)
		}
	}
	if v, ok := m["profile"]; ok {
		if vs, ok := v.(string); ok {
			c.Profile = PerformanceProfile(vs)
		}
	}
	if v, ok := m["enable_gpu_acceleration"]; ok {
		if vb, ok := v.(bool); ok {
			c.EnableGPUAcceleration = vb
		}
	}
	if v, ok := m["enable_multithreading"]; ok {
		if vb, ok := v.(bool); ok {
			c.EnableMultithreading = vb
		}
	}
	if v, ok := m["max_worker_threads"]; ok {
		if vi, ok := toInt(v); ok && vi > 0 {
			c.MaxWorkerThreads = vi
		}
	}
	if v, ok := m["enable_frame_skip"]; ok {
		if vb, ok := v.(bool); ok {
			c.EnableFrameSkip = vb
		}
	}
	if v, ok := m["enable_roi_detection"]; ok {
		if vb, ok := v.(bool); ok {
			c.EnableROIDetection = vb
		}
	}
	if v, ok := m["enable_parallel_ocr"]; ok {
		if vb, ok := v.(bool); ok {
			c.EnableParallelOCR = vb
		}
	}
	if v, ok := m["batch_translation"]; ok {
		if vb, ok := v.(bool); ok {
			c.BatchTranslation = vb
		}
	}
}

func applyPipelineOverrides(c *PipelineConfig, m map[string]any) {
	if v, ok := m["enable_optimizer_plugins"]; ok {
		if vb, ok := v.(bool); ok {
			c.EnableOptimizerPlugins = vb
		}
	}
	if sub := sectionMap(m, "parallel_capture"); sub != nil {
		applyParallelWorkersOverrides(&c.ParallelCapture, sub)
	}
	if sub := sectionMap(m, "parallel_translation"); sub != nil {
		applyParallelWorkersOverrides(&c.ParallelTranslation, sub)
	}
}

func applyParallelWorkersOverrides(c *ParallelWorkersConfig, m map[string]any) {
	if v, ok := m["enabled"]; ok {
		if vb, ok := v.(bool); ok {
			c.Enabled = vb
		}
	}
	if v, ok := m["workers"]; ok {
		if vi, ok := toInt(v); ok && vi > 0 {
			c.Workers = vi
		}
	}
}

func applyAdvancedOverrides(c *AdvancedConfig, m map[string]any) {
	if v, ok := m["debug_mode"]; ok {
		if vb, ok := v.(bool); ok {
			c.DebugMode = vb
		}
	}
	if v, ok := m["enable_monitoring"]; ok {
		if vb, ok := v.(bool); ok {
			c.EnableMonitoring = vb
		}
	}
	if v, ok := m["experimental_features"]; ok {
		if vb, ok := v.(bool); ok {
			c.ExperimentalFeatures = vb
		}
	}
}

func parsePlugins(arr []interface{}) []PluginConfig {
	plugins := make([]PluginConfig, 0, len(arr))
	for _, p := range arr {
		pm, ok := p.(map[string]any)
		if !ok {
			continue
		}
		plugin := PluginConfig{}
		if id, ok := pm["id"].(string); ok {
			plugin.ID = id
		}
		if name, ok := pm["name"].(string); ok {
			plugin.Name = name
		}
		if enabled, ok := pm["enabled"].(bool); ok {
			plugin.Enabled = enabled
		}
		if path, ok := pm["path"].(string); ok {
			plugin.Path = path
		}
		plugins = append(plugins, plugin)
	}
	return plugins
}

// toFloat accepts the numeric shapes yaml.v3 produces for an `any` target:
// int, int64 and float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func configFilePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(exe)
	return filepath.Join(dir, "overlaytranslate.yml"), nil
}
