// Package translate provides the paragraph translators used by the page
// pipeline: an LLM-backed translator, sentence chunking for long paragraphs
// and a persistent translation cache.
package translate

import (
	"context"
	"errors"
)

// ErrEmptyTranslation is returned when a translator produced no text.
var ErrEmptyTranslation = errors.New("translator returned empty text")

// Translator translates one paragraph of plain text.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Func adapts a function to the Translator interface.
type Func func(ctx context.Context, text string) (string, error)

// Translate implements Translator.
func (f Func) Translate(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}
