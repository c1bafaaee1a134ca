package translate

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const DefaultChunkChars = 2000

// SplitText cuts text into pieces of at most limit characters, breaking only
// after '.', '!' or '?' followed by whitespace. Sentences are packed greedily
// and joined by a single space. A sentence longer than limit becomes its own
// oversized chunk; it is never cut.
func SplitText(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkChars
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, sentence := range splitSentences(text) {
		n := utf8.RuneCountInString(sentence)
		if currentLen > 0 && currentLen+1+n <= limit {
			current.WriteByte(' ')
			current.WriteString(sentence)
			currentLen += 1 + n
			continue
		}
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(sentence)
		currentLen = n
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// splitSentences breaks after sentence-ending punctuation that is followed by
// whitespace and drops that whitespace.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}

		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
