package store

import (
	"regexp"
	"strings"
)

// wordRegex matches alphanumeric word runs, apostrophes dropped beforehand
// so "Viktor's" tokenizes as "viktor" + "s" rather than splitting oddly.
var wordRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// TokenizeProse splits narrative text into lowercased word tokens, dropping
// tokens shorter than minLen. It is the shared tokenizer for both full-text
// backends and for keyword extraction from player input.
func TokenizeProse(text string, minLen int) []string {
	if minLen <= 0 {
		minLen = 2
	}
	words := wordRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if len(lower) >= minLen {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

// FilterStopWords removes stop words from a token list, preserving order.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a lookup map.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
