package tts

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Synthesizer turns narration text into one continuous audio file at outPath.
// It accepts text of any length.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, outPath string) error
}

var sentenceRegex = regexp.MustCompile(`[^.!?]+[.!?]*["')\]]*\s*`)

// Chunk splits text into pieces of at most max bytes, cutting at sentence
// boundaries where possible, then at spaces, then anywhere.
func Chunk(text string, max int) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	if max <= 0 || len(text) <= max {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, sentence := range sentenceRegex.FindAllString(text, -1) {
		if cur.Len()+len(sentence) <= max {
			cur.WriteString(sentence)
			continue
		}
		flush()
		if len(sentence) <= max {
			cur.WriteString(sentence)
			continue
		}
		for _, word := range strings.Fields(sentence) {
			for len(word) > max {
				flush()
				n := max
				for n > 1 && !utf8.RuneStart(word[n]) {
					n--
				}
				chunks = append(chunks, word[:n])
				word = word[n:]
			}
			if cur.Len() > 0 && cur.Len()+1+len(word) > max {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(word)
		}
		cur.WriteByte(' ')
	}
	flush()
	return chunks
}
