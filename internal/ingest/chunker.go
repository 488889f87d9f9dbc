package ingest

import "strings"

// Chunker splits text into overlapping windows of words.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker returns a chunker producing windows of size words that share overlap
// words with their predecessor. A non-positive size means one chunk per document.
func NewChunker(size, overlap int) *Chunker {
	if overlap < 0 || (size > 0 && overlap >= size) {
		overlap = 0
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split returns the chunks of text. Whitespace inside a chunk is collapsed to single spaces.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if c.size <= 0 || len(words) <= c.size {
		return []string{strings.Join(words, " ")}
	}
	step := c.size - c.overlap
	var chunks []string
	for start := 0; ; start += step {
		end := min(start+c.size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			return chunks
		}
	}
}
