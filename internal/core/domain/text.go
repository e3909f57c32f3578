package domain

import (
	"regexp"
	"strings"
)

var (
	controlRunes   = strings.NewReplacer("\x00", " ", "\r", " ", "\t", " ", "\ufeff", "")
	spaceBeforeEOL = regexp.MustCompile(`[^\S\n]+\n`)
	manyNewlines   = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalises extracted text before chunking. NUL bytes, carriage
// returns and tabs become spaces, trailing whitespace before a line break
// is removed, runs of three or more line breaks collapse to a blank line
// and the result is trimmed.
func CleanText(text string) string {
	text = strings.ToValidUTF8(text, "\ufffd")
	text = controlRunes.Replace(text)
	text = spaceBeforeEOL.ReplaceAllString(text, "\n")
	text = manyNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
