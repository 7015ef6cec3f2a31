package chunker

import (
	"iter"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the window size used when none is configured.
	DefaultChunkSize = 4000

	codeFence    = "```"
	paragraphSep = "\n\n"
	sentenceEnd  = ". "

	// minBoundaryRatio is how far into the window a boundary must lie to be used.
	minBoundaryRatio = 0.3
)

// TextChunker splits documents into bounded chunks, preferring code-block,
// paragraph and sentence boundaries.
type TextChunker struct {
	maxSize int
}

func NewTextChunker(maxSize int) *TextChunker {
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}
	return &TextChunker{maxSize: maxSize}
}

func (c *TextChunker) Chunk(text string) []string {
	return Chunk(text, c.maxSize)
}

func (c *TextChunker) MaxSize() int {
	return c.maxSize
}

// Chunk collects Split into a slice.
func Chunk(text string, maxSize int) []string {
	var chunks []string
	for chunk := range Split(text, maxSize) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Split yields the trimmed, non-empty chunks of text. Every window except the
// last spans at most maxSize bytes. The sequence can be ranged over repeatedly.
func Split(text string, maxSize int) iter.Seq[string] {
	return func(yield func(string) bool) {
		if maxSize <= 0 {
			maxSize = DefaultChunkSize
		}

		start := 0
		for start < len(text) {
			end := start + maxSize
			if end >= len(text) {
				if chunk := strings.TrimSpace(text[start:]); chunk != "" {
					yield(chunk)
				}
				return
			}

			end = boundary(text, start, end, maxSize)

			if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
				if !yield(chunk) {
					return
				}
			}
			start = end
		}
	}
}

// boundary picks where the window [start, end) should be cut.
func boundary(text string, start, end, maxSize int) int {
	window := text[start:end]
	threshold := float64(maxSize) * minBoundaryRatio

	if i := strings.LastIndex(window, codeFence); i != -1 && float64(i) > threshold {
		return start + i
	}
	if i := strings.LastIndex(window, paragraphSep); i != -1 && float64(i) > threshold {
		return start + i
	}
	if i := strings.LastIndex(window, sentenceEnd); i != -1 && float64(i) > threshold {
		return start + i + 1
	}
	return hardCut(text, start, end)
}

// hardCut keeps a forced cut on a rune boundary.
func hardCut(text string, start, end int) int {
	cut := end
	for cut > start && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut > start {
		return cut
	}
	// Window smaller than one rune: take the whole rune.
	cut = end
	for cut < len(text) && !utf8.RuneStart(text[cut]) {
		cut++
	}
	return cut
}
