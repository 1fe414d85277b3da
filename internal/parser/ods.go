package parser

import (
	"archive/zip"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

const odsContentPath = "content.xml"

var (
	odsTable    = regexp.MustCompile(`(?s)<table:table\s[^>]*table:name="([^"]*)"[^>]*>(.*?)</table:table>`)
	odsRow      = regexp.MustCompile(`(?s)<table:table-row[^>]*>(.*?)</table:table-row>`)
	odsCell     = regexp.MustCompile(`(?s)<table:table-cell[^>]*?(?:/>|>(.*?)</table:table-cell>)`)
	odsTextP    = regexp.MustCompile(`(?s)<text:p[^>]*>(.*?)</text:p>`)
	odsInnerTag = regexp.MustCompile(`<[^>]+>`)
)

// parseODS returns every sheet in the same layout as parseXLSX. OpenDocument
// files are read from content.xml; anything else is handed to excelize.
func parseODS(filePath string) (string, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != odsContentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		return openDocumentToText(string(data)), nil
	}
	return parseSpreadsheet(filePath)
}

func openDocumentToText(contentXML string) string {
	var sheets []string
	for _, table := range odsTable.FindAllStringSubmatch(contentXML, -1) {
		var rows []string
		for _, row := range odsRow.FindAllStringSubmatch(table[2], -1) {
			var cells []string
			for _, cell := range odsCell.FindAllStringSubmatch(row[1], -1) {
				cells = append(cells, odsCellText(cell[1]))
			}
			if line := strings.TrimRight(strings.Join(cells, "\t"), "\t "); line != "" {
				rows = append(rows, line)
			}
		}
		sheets = append(sheets, strings.TrimSpace("Sheet: "+html.UnescapeString(table[1])+"\n"+strings.Join(rows, "\n")))
	}
	return strings.Join(sheets, "\n\n")
}

func odsCellText(cellXML string) string {
	var parts []string
	for _, p := range odsTextP.FindAllStringSubmatch(cellXML, -1) {
		if s := strings.TrimSpace(html.UnescapeString(odsInnerTag.ReplaceAllString(p[1], ""))); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// parseSpreadsheet reads any workbook excelize understands.
func parseSpreadsheet(filePath string) (string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sheets []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return "", err
		}
		var text strings.Builder
		text.WriteString("Sheet: " + sheetName + "\n")
		for _, row := range rows {
			if line := strings.TrimRight(strings.Join(row, "\t"), "\t "); line != "" {
				text.WriteString(line + "\n")
			}
		}
		sheets = append(sheets, strings.TrimSpace(text.String()))
	}
	return strings.Join(sheets, "\n\n"), nil
}
