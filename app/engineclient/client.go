// Package engineclient defines the boundary between the pipeline and the
// concrete OCR/translation engines (out of scope for this module; see
// spec Non-goals) and provides a subprocess-backed reference adapter
// exercising that boundary.
package engineclient

import (
	"context"

	"overlaytranslate/app/types"
)

// Client is the bounded-latency request/response transport the OCR and
// Translate stages talk to. A concrete engine (Tesseract, Manga OCR, a
// cloud translation API, ...) implements this however it likes; the
// pipeline only ever depends on this interface, never on a specific
// engine library.
type Client interface {
	// ExtractText recognizes text blocks in frame. Implementations may
	// return an empty slice (not an error) when nothing is recognized.
	ExtractText(ctx context.Context, frame *types.Frame) ([]types.TextBlock, error)

	// Translate returns the translated text. An empty string return
	// (with nil error) signals translation failure per the external
	// interface contract in spec.md §6.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)

	// IsReady reports whether the engine is currently able to serve
	// requests, independent of any individual call outcome.
	IsReady() bool
}
