package parser

import (
	"html"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

var (
	// wtTag matches <w:t>text</w:t> and <w:t xml:space="preserve">text</w:t>.
	wtTag      = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	wParagraph = regexp.MustCompile(`</w:p>`)
	wTab       = regexp.MustCompile(`<w:tab/>`)
)

// parseDOCX returns the raw text of the document body, one paragraph per block.
func parseDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	return documentXMLToText(r.Editable().GetContent()), nil
}

func documentXMLToText(documentXML string) string {
	documentXML = wTab.ReplaceAllString(documentXML, "<w:t>\t</w:t>")
	var paragraphs []string
	for _, p := range wParagraph.Split(documentXML, -1) {
		var text strings.Builder
		for _, m := range wtTag.FindAllStringSubmatch(p, -1) {
			text.WriteString(html.UnescapeString(m[1]))
		}
		if s := strings.TrimSpace(text.String()); s != "" {
			paragraphs = append(paragraphs, s)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
