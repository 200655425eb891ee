package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// extractExcel returns the non-empty cells of every sheet, one row per line. Reading stops
// once budget runes have been collected (budget <= 0 reads the whole workbook).
func extractExcel(content []byte, budget int) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var (
		sb    strings.Builder
		runes int
	)
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				if c = strings.TrimSpace(c); c != "" {
					cells = append(cells, c)
				}
			}
			if len(cells) == 0 {
				continue
			}
			line := strings.Join(cells, " ")
			sb.WriteString(line)
			sb.WriteByte('\n')
			runes += utf8.RuneCountInString(line) + 1
			if budget > 0 && runes >= budget {
				return sb.String(), nil
			}
		}
	}
	return sb.String(), nil
}
