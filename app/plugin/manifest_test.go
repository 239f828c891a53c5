package plugin

import "testing"

func TestValidateManifestRequiresName(t *testing.T) {
	m := &Manifest{Version: "1.0.0", DisplayName: "Frame Skip"}
	if err := validateManifest(m); err == nil {
		t.Fatalf("expected error for missing name")
	}
}

func TestValidateManifestRejectsBadSemver(t *testing.T) {
	m := &Manifest{Name: "frame_skip", Version: "1.0", DisplayName: "Frame Skip"}
	if err := validateManifest(m); err == nil {
		t.Fatalf("expected error for non-semver version")
	}
}

func TestValidateManifestAcceptsWellFormed(t *testing.T) {
	m := &Manifest{Name: "frame_skip", Version: "1.0.0", DisplayName: "Frame Skip"}
	if err := validateManifest(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEffectiveSettingsOverlaysOverrides(t *testing.T) {
	m := Manifest{Settings: map[string]SettingSpec{
		"threshold": {Default: 0.98},
		"workers":   {Default: 4},
	}}
	got := m.EffectiveSettings(map[string]any{"threshold": 0.5})
	if got["threshold"] != 0.5 {
		t.Fatalf("expected override to apply, got %v", got["threshold"])
	}
	if got["workers"] != 4 {
		t.Fatalf("expected default to survive, got %v", got["workers"])
	}
}
