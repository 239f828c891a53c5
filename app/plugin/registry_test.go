package plugin

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, name, yamlBody string) {
	t.Helper()
	pluginDir := filepath.Join(dir, name)
	if err := os.MkdirAll(pluginDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.yml"), []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestRegistryDiscoverSkipsInvalidManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "frame_skip", "name: frame_skip\nversion: 1.0.0\ndisplay_name: Frame Skip\nessential: true\n")
	writeManifest(t, dir, "broken", "version: 1.0.0\n") // missing name

	r := NewRegistry(nil)
	if err := r.Discover(dir); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	manifests := r.Manifests()
	if len(manifests) != 1 {
		t.Fatalf("expected 1 valid manifest, got %d", len(manifests))
	}
	if manifests[0].Name != "frame_skip" {
		t.Fatalf("unexpected manifest: %+v", manifests[0])
	}
}

func TestRegistryLoadAllHonorsEssentialAndEnabled(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "frame_skip", "name: frame_skip\nversion: 1.0.0\ndisplay_name: Frame Skip\nessential: true\n")
	writeManifest(t, dir, "motion_tracker", "name: motion_tracker\nversion: 1.0.0\ndisplay_name: Motion Tracker\nessential: false\nenabled: false\n")

	r := NewRegistry(nil)
	if err := r.Discover(dir); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if err := r.LoadAll(true, nil); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	loaded := r.Loaded()
	if _, ok := loaded["frame_skip"]; !ok {
		t.Fatalf("expected essential plugin to load regardless of enabled flag")
	}
	if _, ok := loaded["motion_tracker"]; ok {
		t.Fatalf("expected disabled optional plugin to stay unloaded")
	}
}

func TestRegistryLoadAllSkipsOptionalWhenNotRequested(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "translation_cache", "name: translation_cache\nversion: 1.0.0\ndisplay_name: Translation Cache\nessential: false\nenabled: true\n")

	r := NewRegistry(nil)
	if err := r.Discover(dir); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if err := r.LoadAll(false, nil); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(r.Loaded()) != 0 {
		t.Fatalf("expected no optional plugins loaded when loadAllOptional is false")
	}
}

func TestRegistryManifestNamesOrdersEssentialFirst(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "parallel_translation", "name: parallel_translation\nversion: 1.0.0\ndisplay_name: Parallel Translation\nessential: false\nenabled: true\n")
	writeManifest(t, dir, "frame_skip", "name: frame_skip\nversion: 1.0.0\ndisplay_name: Frame Skip\nessential: true\n")

	r := NewRegistry(nil)
	if err := r.Discover(dir); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	names := r.ManifestNames()
	if len(names) != 2 || names[0] != "frame_skip" {
		t.Fatalf("expected essential plugin first, got %v", names)
	}
}

func TestHostRunProcessWithNoLoadedOptimizers(t *testing.T) {
	r := NewRegistry(nil)
	host := NewHost(r)
	// no optimizers loaded: RunProcess over an empty set must not panic
	host.RunProcess(&Payload{})
}
