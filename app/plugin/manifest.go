package plugin

import (
	"errors"
	"fmt"
	"strings"
)

// SettingSpec describes one configurable knob an optimizer manifest
// exposes, along with its default value.
type SettingSpec struct {
	Default any `yaml:"default"`
}

// Manifest is the parsed plugin.yml describing one optimizer.
type Manifest struct {
	Name        string                 `yaml:"name"`
	Version     string                 `yaml:"version"`
	DisplayName string                 `yaml:"display_name"`
	Description string                 `yaml:"description"`
	Essential   bool                   `yaml:"essential"`
	Enabled     bool                   `yaml:"enabled"`
	Settings    map[string]SettingSpec `yaml:"settings"`
}

// EffectiveSettings merges each setting's default with any override the
// operator supplied, the same defaults-overlaid-with-a-generic-map idiom
// the configuration loader uses.
func (m Manifest) EffectiveSettings(overrides map[string]any) map[string]any {
	out := make(map[string]any, len(m.Settings))
	for k, spec := range m.Settings {
		out[k] = spec.Default
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// validateManifest validates the required fields of a parsed manifest.
func validateManifest(manifest *Manifest) error {
	if manifest.Name == "" {
		return errors.New("manifest missing required field: name")
	}
	if manifest.Version == "" {
		return errors.New("manifest missing required field: version")
	}
	if !isValidSemver(manifest.Version) {
		return fmt.Errorf("manifest field 'version' must be in semver format (e.g., '1.0.0'), got: %s", manifest.Version)
	}
	if manifest.DisplayName == "" {
		return errors.New("manifest missing required field: display_name")
	}
	if len(manifest.Description) > 500 {
		return errors.New("manifest field 'description' exceeds 500 characters")
	}
	return nil
}

// isValidSemver checks if a version string follows basic semver format
func isValidSemver(version string) bool {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, ch := range part {
			if ch < '0' || ch > '9' {
				return false
			}
		}
	}
	return true
}
