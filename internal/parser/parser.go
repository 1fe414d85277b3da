// Package parser extracts plain text from the document formats the pipeline ingests.
package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// ImageReader recognizes the text in a raster image file.
type ImageReader interface {
	ReadImage(path string) (string, error)
}

// Extractor dispatches a file to the extraction routine for its extension.
type Extractor struct {
	images        ImageReader
	stripMarkdown bool
}

type Option func(*Extractor)

// WithImageReader sets the OCR engine used for image files.
func WithImageReader(r ImageReader) Option {
	return func(e *Extractor) { e.images = r }
}

// WithMarkdownStripping renders Markdown files to plain text instead of reading them verbatim.
func WithMarkdownStripping(strip bool) Option {
	return func(e *Extractor) { e.stripMarkdown = strip }
}

func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractText returns the plain text of the file at path, or an empty string
// when the format is unsupported or extraction fails. Failures are logged.
func (e *Extractor) ExtractText(path string) string {
	text, err := e.Extract(path)
	if errors.Is(err, ErrUnsupportedFormat) {
		log.Warn().Str("path", path).Str("ext", filepath.Ext(path)).Msg("Unsupported file type")
		return ""
	}
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Error extracting text")
		return ""
	}
	return text
}

// Extract returns the plain text of the file at path. Panics raised by the
// format libraries on malformed input are returned as errors.
func (e *Extractor) Extract(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("extract %s: %v", path, r)
		}
	}()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt":
		return readPlain(path)
	case ".md":
		if e.stripMarkdown {
			return readMarkdown(path)
		}
		return readPlain(path)
	case ".pdf":
		return parsePDF(path)
	case ".docx":
		return parseDOCX(path)
	case ".png", ".jpg", ".jpeg", ".tiff", ".tif":
		if e.images == nil {
			return "", fmt.Errorf("no OCR engine configured for %s", ext)
		}
		return e.images.ReadImage(path)
	case ".xlsx":
		return parseXLSX(path)
	case ".ods":
		return parseODS(path)
	case ".pptx":
		return parsePPTX(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// readPlain reads a text file, dropping byte sequences that are not valid UTF-8.
func readPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
