// Package chunker splits extracted document text into overlapping, sentence-aligned chunks.
package chunker

import (
	"maps"
	"strings"
	"unicode/utf8"

	"document-ingest/internal/models"
)

const (
	DefaultChunkSize    = 1000 // characters
	DefaultOverlapWords = 20

	sentenceDelimiter = "."
	sentenceJoiner    = ". "
)

// Chunker accumulates sentences into chunks of at most chunkSize characters.
// A sentence longer than chunkSize is never split and becomes its own oversized chunk.
type Chunker struct {
	chunkSize    int
	overlapWords int
}

// New creates a chunker; non-positive arguments fall back to the defaults.
func New(chunkSize, overlapWords int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlapWords <= 0 {
		overlapWords = DefaultOverlapWords
	}
	return &Chunker{chunkSize: chunkSize, overlapWords: overlapWords}
}

// ChunkSize returns the soft chunk size limit in characters.
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

// Chunk splits text into chunks carrying a copy of metadata plus chunk_index.
// Every chunk after the first starts with the last overlapWords words of its predecessor.
func (c *Chunker) Chunk(text string, metadata map[string]any) []models.Chunk {
	var chunks []models.Chunk
	current := ""
	for _, sentence := range SplitSentences(text) {
		if current != "" && utf8.RuneCountInString(current)+utf8.RuneCountInString(sentence) > c.chunkSize {
			chunks = appendChunk(chunks, current, metadata)
			current = strings.Join(LastWords(current, c.overlapWords), " ") + sentenceJoiner + sentence
			continue
		}
		if current != "" {
			current += sentenceJoiner
		}
		current += sentence
	}
	if strings.TrimSpace(current) != "" {
		chunks = appendChunk(chunks, current, metadata)
	}
	return chunks
}

func appendChunk(chunks []models.Chunk, content string, metadata map[string]any) []models.Chunk {
	index := len(chunks)
	meta := make(map[string]any, len(metadata)+1)
	maps.Copy(meta, metadata)
	meta[models.MetaChunkIndex] = index
	return append(chunks, models.Chunk{
		Content:    strings.TrimSpace(content),
		ChunkIndex: index,
		Metadata:   meta,
	})
}

// SplitSentences splits text on the period character, trimming units and dropping empty ones.
// Abbreviations and decimal numbers are split too.
func SplitSentences(text string) []string {
	parts := strings.Split(text, sentenceDelimiter)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// LastWords returns up to n trailing whitespace-separated words of s.
func LastWords(s string, n int) []string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return words
}
