package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// extractPDF returns the plain text of a PDF, page by page. Reading stops once budget runes
// have been collected (budget <= 0 reads every page). Pages whose text cannot be decoded are
// skipped; the document fails only when no page yields text.
func extractPDF(content []byte, budget int) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var (
		sb      strings.Builder
		runes   int
		lastErr error
	)
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			lastErr = fmt.Errorf("page %d: %w", i, err)
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(text)
		runes += utf8.RuneCountInString(text)
		if budget > 0 && runes >= budget {
			break
		}
	}
	if sb.Len() == 0 && lastErr != nil {
		return "", fmt.Errorf("extract PDF text: %w", lastErr)
	}
	return sb.String(), nil
}
