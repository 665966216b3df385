// Package summary turns long imported posts into short excerpts using a local Ollama model or any OpenAI-compatible API.
package summary

import (
	"strings"
	"unicode/utf8"
)

// maxInputRunes bounds the text sent to a model. Feed articles can be far
// longer than the context window of small local models.
const maxInputRunes = 6000

// excerptTokens caps the reply, an excerpt is a couple of sentences.
const excerptTokens = 256

// clip cuts text to maxInputRunes, at the last whitespace when there is one.
func clip(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= maxInputRunes {
		return text
	}

	cut := string([]rune(text)[:maxInputRunes])
	if i := strings.LastIndexAny(cut, " \n\t"); i > 0 {
		cut = cut[:i]
	}
	return cut
}
