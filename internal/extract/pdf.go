package extract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

func (e *Extractor) extractPDF(content []byte) (text string, err error) {
	if len(content) == 0 {
		return "", errors.New("empty document")
	}
	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("open PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	if numPages == 0 {
		return "", errors.New("PDF has no pages")
	}
	extracted := 0
	for i := 1; i <= numPages; i++ {
		pageText, err := e.pageText(r, i)
		if err != nil {
			e.logger.Warn("skipping page", zap.Int("page", i), zap.Error(err))
			continue
		}
		if extracted > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(pageText)
		extracted++
	}
	if extracted == 0 {
		return "", fmt.Errorf("no readable pages out of %d", numPages)
	}
	return buf.String(), nil
}

func (e *Extractor) pageText(r *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("extract page %d: %v", num, rec)
		}
	}()
	page := r.Page(num)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d not found", num)
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract page %d: %w", num, err)
	}
	return text, nil
}
