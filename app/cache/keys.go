package cache

import "strings"

// Key builds the composite lookup key for a translation: normalized
// source text plus the language pair. normalized should already have
// whitespace collapsed and casing settled by the caller (the quality
// filter and validation stages both normalize before this point).
func Key(normalizedText, sourceLang, targetLang string) string {
	return strings.ToLower(sourceLang) + "|" + strings.ToLower(targetLang) + "|" + normalizedText
}

// SplitKey recovers the (sourceLang, targetLang, normalizedText) triple
// from a key built by Key. Returns ok=false if the key is malformed.
func SplitKey(key string) (sourceLang, targetLang, text string, ok bool) {
	parts := strings.SplitN(key, "|", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
