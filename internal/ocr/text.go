package ocr

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/starford/paperasse/internal/apperr"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func recognizePlainText(data []byte) (Result, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return Result{}, fmt.Errorf("ocr: text is not valid UTF-8: %w", apperr.ErrUnreadable)
	}
	return Result{Text: string(data), Confidence: 1.0, Vendor: VendorPlainText}, nil
}
