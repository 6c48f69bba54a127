package segment

import (
	"strings"
	"unicode"
)

// SplitSentences splits text on sentence boundaries. A boundary is a '.',
// '!' or '?' (optionally followed by closing quotes or brackets) that is
// followed by whitespace. The split is deterministic and keeps terminal
// punctuation attached to its sentence; surrounding whitespace is trimmed.
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isSentenceTerminator(runes[i]) {
			continue
		}
		// Swallow a run of terminators ("...", "?!") and trailing quotes.
		end := i + 1
		for end < len(runes) && (isSentenceTerminator(runes[end]) || isClosingMark(runes[end])) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			// Mid-token punctuation such as "3.5" or "e.g.x" is not a boundary.
			i = end - 1
			continue
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			sentences = append(sentences, s)
		}
		start = end
		i = end - 1
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSentenceTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosingMark(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '”' || r == '’'
}
