// Package validate implements the pipeline's post-OCR text validation
// stage: an advisory filter that rejects recognized blocks unlikely to be
// genuine translatable text before they reach the translation stage.
package validate

import (
	"regexp"
	"strings"
	"unicode"

	"overlaytranslate/app/types"
)

// scriptRanges maps an ISO-639-1 language code to the Unicode range
// tables its script is expected to fall within. Languages absent from this
// map are never rejected on script grounds — the predicate only fires for
// scripts we can actually check.
var scriptRanges = map[string][]*unicode.RangeTable{
	"ja": {unicode.Hiragana, unicode.Katakana, unicode.Han},
	"zh": {unicode.Han},
	"ko": {unicode.Hangul},
	"ru": {unicode.Cyrillic},
	"el": {unicode.Greek},
	"ar": {unicode.Arabic},
}

// uiJunkPatterns matches common non-translatable OCR captures: bare UI
// chrome like window-control glyphs, timestamps, and numeric-only strings.
var uiJunkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[\d:./\-]+$`),     // timestamps, dates, counters
	regexp.MustCompile(`^[xX□■▢]{1,3}$`),    // window control glyphs
	regexp.MustCompile(`^[|!.,;:'"\s]*$`),  // pure punctuation
}

// Config holds the thresholds a Validator checks against.
type Config struct {
	Enabled             bool
	ConfidenceThreshold float64
}

// DefaultConfig mirrors ocr.confidence_threshold's default.
func DefaultConfig() Config {
	return Config{Enabled: true, ConfidenceThreshold: 0.6}
}

// Validator rejects recognized text blocks that are unlikely to be
// genuine translatable text. It is advisory: the pipeline stage built on
// top of it is non-required, and when Config.Enabled is false every block
// passes.
type Validator struct {
	cfg Config
}

// New constructs a Validator for the given Config.
func New(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Accept reports whether block passes validation, and if not, why.
func (v *Validator) Accept(block types.TextBlock) (bool, string) {
	if !v.cfg.Enabled {
		return true, ""
	}

	if block.Confidence < v.cfg.ConfidenceThreshold {
		return false, "confidence below threshold"
	}

	trimmed := strings.TrimSpace(block.Text)
	if trimmed == "" {
		return false, "text is empty"
	}
	if isPureWhitespace(block.Text) {
		return false, "text is pure whitespace"
	}

	if ranges, ok := scriptRanges[block.Language]; ok && outsideScript(trimmed, ranges) {
		return false, "text contains only characters outside the declared language script"
	}

	for _, p := range uiJunkPatterns {
		if p.MatchString(trimmed) {
			return false, "text matches a known UI-junk pattern"
		}
	}

	return true, ""
}

func isPureWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// outsideScript reports whether every letter rune in s falls outside all
// of the given ranges — i.e. none of the text is in the declared script.
func outsideScript(s string, ranges []*unicode.RangeTable) bool {
	sawLetter := false
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		sawLetter = true
		if unicode.In(r, ranges...) {
			return false
		}
	}
	return sawLetter
}
