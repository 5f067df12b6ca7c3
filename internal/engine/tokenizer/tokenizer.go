// Package tokenizer normalises raw passage text into index terms. It
// lower-cases input and splits on any rune that is not an ASCII letter, an
// ASCII digit, or a CJK Unified Ideograph. There is no stemming and no
// stop-word removal: scoring depends on raw term statistics, so the builder
// and the ranking engine must see exactly the same token stream.
package tokenizer

import "strings"

// Tokenize breaks text into a slice of lowercased terms. The output preserves
// input order and is not deduplicated; callers that need distinct terms (for
// document-frequency counting or query deduplication) must dedupe themselves.
//
// A contiguous run of CJK ideographs becomes a single multi-character term.
// The corpus is not word-segmented, so CJK queries only match on identical
// runs; an accepted lexical limitation.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !isIndexRune(r)
	})
	return tokens
}

// isIndexRune reports whether r may appear inside an index term.
func isIndexRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
		return true
	}
	return false
}
