package models

// Chunk represents a span of one file's text with the metadata shared by
// all chunks of that file plus its own chunk_index.
type Chunk struct {
	Content    string
	ChunkIndex int
	Metadata   map[string]any
}

// StoredRecord is one persisted row of the document_chunks table.
type StoredRecord struct {
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	ChunkIndex int            `json:"chunk_index"`
	Embedding  []float32      `json:"embedding"`
	CreatedAt  string         `json:"created_at"`
}

// FileMetadata builds the metadata shared by every chunk of a file.
// size is the length of the extracted text in characters.
func FileMetadata(source, filename, directory string, size int) map[string]any {
	return map[string]any{
		MetaSource:    source,
		MetaFilename:  filename,
		MetaDirectory: directory,
		MetaFileSize:  size,
	}
}
