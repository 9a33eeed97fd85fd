package usecase

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// joinTranscripts concatenates segment transcripts in order. A single space
// separates segments unless one side of the boundary is already whitespace.
func joinTranscripts(segments []string) string {
	var b strings.Builder
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if b.Len() > 0 && !endsWithSpace(b.String()) && !startsWithSpace(segment) {
			b.WriteByte(' ')
		}
		b.WriteString(segment)
	}
	return b.String()
}

func endsWithSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(r)
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}
