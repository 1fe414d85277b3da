package models

const (
	MetaSource     = "source"
	MetaFilename   = "filename"
	MetaDirectory  = "directory"
	MetaFileSize   = "file_size"
	MetaChunkIndex = "chunk_index"

	// CreatedAtLayout matches "YYYY-MM-DD HH:MM:SS".
	CreatedAtLayout = "2006-01-02 15:04:05"

	DefaultTable          = "document_chunks"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// SupportedExtensions is the default set of extensions collected during traversal.
var SupportedExtensions = []string{".txt", ".md", ".pdf", ".docx", ".png", ".jpg", ".jpeg", ".tiff"}
