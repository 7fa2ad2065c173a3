package documents

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultChunkSize is the target chunk length in characters.
const DefaultChunkSize = 1000

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// ChunkPages splits each page into chunks of at most size characters. Chunks
// never span pages, so every page with text yields at least one chunk.
func ChunkPages(pages []string, size int) []string {
	var chunks []string
	for _, p := range pages {
		chunks = append(chunks, ChunkText(p, size)...)
	}
	return chunks
}

// ChunkText packs paragraphs into chunks of at most size characters.
// Paragraphs longer than size are split on sentence boundaries, and sentences
// longer than size are split on whitespace or, failing that, hard.
func ChunkText(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}

	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}
	add := func(piece, sep string) {
		if cur.Len() > 0 && runeLen(cur.String())+runeLen(sep)+runeLen(piece) > size {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(piece)
	}

	for _, para := range paragraphBreak.Split(text, -1) {
		para = collapseSpaces(para)
		if para == "" {
			continue
		}
		if runeLen(para) <= size {
			add(para, "\n\n")
			continue
		}

		flush()
		for _, sentence := range splitSentences(para) {
			if runeLen(sentence) <= size {
				add(sentence, " ")
				continue
			}
			flush()
			for _, piece := range hardSplit(sentence, size) {
				add(piece, " ")
			}
		}
		flush()
	}
	flush()
	return chunks
}

// splitSentences breaks text after '.', '!' or '?' followed by whitespace.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// hardSplit cuts text into pieces of at most size runes, preferring the last
// space inside each window.
func hardSplit(text string, size int) []string {
	var out []string
	runes := []rune(text)
	for len(runes) > size {
		cut := size
		for i := size; i > size/2; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		if s := strings.TrimSpace(string(runes[:cut])); s != "" {
			out = append(out, s)
		}
		runes = runes[cut:]
	}
	if s := strings.TrimSpace(string(runes)); s != "" {
		out = append(out, s)
	}
	return out
}

func collapseSpaces(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
