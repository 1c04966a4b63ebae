package translate

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// Sentences splits text at Unicode sentence boundaries, dropping
// surrounding whitespace and empty sentences.
func Sentences(text string) []string {
	var out []string
	state := -1
	rest := text
	for len(rest) > 0 {
		var s string
		s, rest, state = uniseg.FirstSentenceInString(rest, state)
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Chunks groups consecutive sentences into pieces of at most maxChars runes
// joined by single spaces. A sentence longer than maxChars becomes a chunk on
// its own.
func Chunks(text string, maxChars int) []string {
	sentences := Sentences(text)
	if maxChars <= 0 {
		return sentences
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	for _, s := range sentences {
		n := utf8.RuneCountInString(s)
		if curLen > 0 && curLen+1+n > maxChars {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(s)
		curLen += n
	}
	if curLen > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// unspacedLanguages are written without spaces between sentences.
var unspacedLanguages = map[string]bool{"ja": true, "zh": true, "th": true}

// JoinSeparator returns the separator placed between translated chunks for
// a target language code such as "ja" or "en-US".
func JoinSeparator(lang string) string {
	base := strings.ToLower(lang)
	if i := strings.IndexAny(base, "-_"); i >= 0 {
		base = base[:i]
	}
	if unspacedLanguages[base] {
		return ""
	}
	return " "
}

// ChunkingTranslator splits paragraphs longer than MaxChars into
// sentence-aligned chunks, translates each and joins the results.
type ChunkingTranslator struct {
	Inner          Translator
	MaxChars       int
	TargetLanguage string
}

// Translate implements Translator. Any failing chunk fails the paragraph.
func (c *ChunkingTranslator) Translate(ctx context.Context, text string) (string, error) {
	if c.MaxChars <= 0 || utf8.RuneCountInString(text) <= c.MaxChars {
		return c.Inner.Translate(ctx, text)
	}

	chunks := Chunks(text, c.MaxChars)
	out := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		translated, err := c.Inner.Translate(ctx, chunk)
		if err != nil {
			return "", fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		out = append(out, strings.TrimSpace(translated))
	}
	return strings.Join(out, JoinSeparator(c.TargetLanguage)), nil
}
