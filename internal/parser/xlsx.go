package parser

import (
	"strings"

	"github.com/tealeg/xlsx"
)

// parseXLSX returns every sheet as tab-separated rows under a "Sheet: name" line.
func parseXLSX(filePath string) (string, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return "", err
	}

	var sheets []string
	for _, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString("Sheet: " + sheet.Name + "\n")
		for _, row := range sheet.Rows {
			if row == nil {
				continue
			}
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			if line := strings.TrimRight(strings.Join(cells, "\t"), "\t "); line != "" {
				text.WriteString(line + "\n")
			}
		}
		sheets = append(sheets, strings.TrimSpace(text.String()))
	}
	return strings.Join(sheets, "\n\n"), nil
}
