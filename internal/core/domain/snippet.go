package domain

import (
	"regexp"
	"strings"
)

var (
	wordRe     = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)
	sentenceRe = regexp.MustCompile(`[^.!?;\n]+(?:[.!?;]+|\n|$)`)
)

// Sentences splits text on sentence terminators and line breaks.
// Blank pieces are dropped and the rest are trimmed.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// BestSentence returns the sentences of text and the index of the one
// sharing the most distinct words with query, ignoring case. Ties go to
// the earliest sentence. The index is -1 when text has no sentences.
func BestSentence(text, query string) ([]string, int) {
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return nil, -1
	}

	terms := wordSet(query)
	best, bestScore := 0, 0
	for i, s := range sentences {
		score := 0
		for w := range wordSet(s) {
			if _, ok := terms[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return sentences, best
}

func wordSet(s string) map[string]struct{} {
	words := wordRe.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
