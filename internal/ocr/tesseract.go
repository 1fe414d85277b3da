// Package ocr recognizes text in scanned images with Tesseract.
package ocr

import (
	"errors"
	"fmt"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"
)

// Tesseract reads images with the configured language models, e.g. nld+eng.
type Tesseract struct {
	languages []string
}

func NewTesseract(languages ...string) (*Tesseract, error) {
	if len(languages) == 0 {
		return nil, errors.New("at least one OCR language is required")
	}
	return &Tesseract{languages: languages}, nil
}

// ReadImage runs OCR on the image at path. A client is created per image
// because gosseract clients are not safe to share.
func (t *Tesseract) ReadImage(path string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("set OCR languages %v: %w", t.languages, err)
	}
	if err := client.SetImage(path); err != nil {
		return "", fmt.Errorf("load image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	log.Debug().Str("path", path).Int("chars", len(text)).Msg("OCR finished")
	return text, nil
}
