package parser

import (
	"archive/zip"
	"html"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	atTag     = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)
)

// parsePPTX returns the text of every slide in slide order, one slide per block.
func parsePPTX(filePath string) (string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range f.File {
		m := slideName.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, file: file})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var texts []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		if text := extractTextFromXML(string(data)); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n\n"), nil
}

func extractTextFromXML(xmlContent string) string {
	var parts []string
	for _, m := range atTag.FindAllStringSubmatch(xmlContent, -1) {
		if s := strings.TrimSpace(html.UnescapeString(m[1])); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
