// Package quality filters novel translations before they are persisted
// to the dictionary, rejecting low-confidence, garbled, or untranslated
// output without affecting what's shown as an overlay.
package quality

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode selects a named threshold profile.
type Mode string

const (
	ModeBalanced Mode = "balanced"
	ModeStrict   Mode = "strict"
	ModeDisabled Mode = "disabled"
)

// Config holds the numeric thresholds a Filter evaluates against.
type Config struct {
	MinConfidence      float64
	MinLength          int
	MaxSpecialCharRatio float64
	MinWordCount       int
}

// BalancedConfig is the default profile.
func BalancedConfig() Config {
	return Config{MinConfidence: 0.7, MinLength: 2, MaxSpecialCharRatio: 0.5, MinWordCount: 1}
}

// StrictConfig is the high-quality-only profile.
func StrictConfig() Config {
	return Config{MinConfidence: 0.85, MinLength: 3, MaxSpecialCharRatio: 0.3, MinWordCount: 1}
}

// ConfigForMode resolves a named Mode to its Config. ModeDisabled has no
// meaningful Config; callers should skip filtering entirely for it.
func ConfigForMode(m Mode) Config {
	if m == ModeStrict {
		return StrictConfig()
	}
	return BalancedConfig()
}

var badPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[^a-zA-Z0-9\s]{3,}$`), // only special characters
	regexp.MustCompile(`^[\d\s\-_.]{5,}$`),     // only numbers and punctuation
	regexp.MustCompile(`^[A-Z\s]{10,}$`),       // all caps, likely an OCR artifact
}

// hasRepeatedChar reports whether any character is repeated 5+ times in a
// row.
func hasRepeatedChar(s string) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if run > 0 && r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= 5 {
			return true
		}
	}
	return false
}

var specialCharPattern = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// Filter evaluates translations against a fixed Config, unless its Mode is
// ModeDisabled, in which case every translation passes unconditionally.
type Filter struct {
	mode Mode
	cfg  Config
}

// NewFilter constructs a Filter for the given Config, for use with
// ModeBalanced/ModeStrict. Use NewFilterForMode to also honor ModeDisabled.
func NewFilter(cfg Config) *Filter {
	return &Filter{mode: ModeBalanced, cfg: cfg}
}

// NewFilterForMode constructs a Filter for the named Mode, resolving its
// Config via ConfigForMode. ModeDisabled bypasses every predicate.
func NewFilterForMode(m Mode) *Filter {
	return &Filter{mode: m, cfg: ConfigForMode(m)}
}

// ShouldSave reports whether a translation passes every quality
// predicate, and if not, why. A Filter constructed with ModeDisabled
// always passes.
func (f *Filter) ShouldSave(original, translation string, confidence float64) (bool, string) {
	if f.mode == ModeDisabled {
		return true, "quality filter disabled"
	}
	if confidence < f.cfg.MinConfidence {
		return false, fmt.Sprintf("confidence too low (%.2f < %.2f)", confidence, f.cfg.MinConfidence)
	}

	trimmed := strings.TrimSpace(translation)
	if trimmed == "" {
		return false, "translation is empty"
	}

	if strings.EqualFold(trimmed, strings.TrimSpace(original)) {
		return false, "translation identical to original"
	}

	if len(trimmed) < f.cfg.MinLength {
		return false, fmt.Sprintf("translation too short (%d < %d)", len(trimmed), f.cfg.MinLength)
	}

	totalChars := len([]rune(translation))
	if totalChars > 0 {
		specialChars := len(specialCharPattern.FindAllString(translation, -1))
		ratio := float64(specialChars) / float64(totalChars)
		if ratio > f.cfg.MaxSpecialCharRatio {
			return false, fmt.Sprintf("too many special characters (%.0f%% > %.0f%%)", ratio*100, f.cfg.MaxSpecialCharRatio*100)
		}
	}

	words := strings.Fields(translation)
	if len(words) < f.cfg.MinWordCount {
		return false, fmt.Sprintf("not enough words (%d < %d)", len(words), f.cfg.MinWordCount)
	}

	if hasRepeatedChar(translation) {
		return false, "matches bad pattern: repeated character"
	}
	for _, p := range badPatterns {
		if p.MatchString(translation) {
			return false, fmt.Sprintf("matches bad pattern: %s", p.String())
		}
	}

	stripped := strings.NewReplacer(" ", "", "\t", "", "\n", "").Replace(translation)
	if stripped == "" {
		return false, "translation is only whitespace"
	}

	if distinctCharCount(stripped) < 3 && len(translation) > 5 {
		return false, "translation has too few unique characters"
	}

	return true, ""
}

func distinctCharCount(s string) int {
	set := make(map[rune]struct{})
	for _, r := range s {
		set[r] = struct{}{}
	}
	return len(set)
}

// Score computes a rough 0–1 quality score, independent of ShouldSave's
// pass/fail verdict — useful for ranking among several accepted
// candidates (e.g. when multiple engines produce a translation).
func Score(original, translation string, confidence float64) float64 {
	score := confidence

	if l := len(translation); l >= 5 && l <= 100 {
		score += 0.05
	}
	if len(strings.Fields(translation)) >= 2 {
		score += 0.05
	}

	totalChars := len([]rune(translation))
	if totalChars > 0 {
		specialChars := len(specialCharPattern.FindAllString(translation, -1))
		if float64(specialChars)/float64(totalChars) < 0.2 {
			score += 0.05
		}
	}

	if len(translation) > 5 && translation == strings.ToUpper(translation) {
		score -= 0.1
	}
	if strings.EqualFold(translation, original) {
		score -= 0.3
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}
	return score
}
