package ocr

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"

	"github.com/starford/paperasse/internal/apperr"
)

// recognizePDF extracts the text layer page by page. The confidence is the
// share of printable runes in the result.
func recognizePDF(data []byte) (Result, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return Result{}, fmt.Errorf("ocr: read pdf: %v: %w", err, apperr.ErrUnreadable)
	}

	var pages []string
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		if text := extractPageText(ctx, pageNr); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return Result{}, fmt.Errorf("ocr: no text layer in pdf: %w", apperr.ErrUnreadable)
	}

	text := strings.Join(pages, "\n")
	return Result{Text: text, Confidence: printableRatio(text), Vendor: VendorPDFTextLayer}, nil
}

func extractPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return extractTextFromStream(data)
}

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// extractTextFromStream reads the text-showing operators of a content
// stream. Each Tj/TJ/' operand is appended; positioning operators become
// separators.
func extractTextFromStream(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")), bytes.Equal(line, []byte("ET")):
			sb.WriteByte('\n')
		}
	}

	return cleanText(sb.String())
}

// decodePDFString resolves escape sequences and decodes the literal from
// WinAnsi, the encoding of the standard fonts.
func decodePDFString(raw []byte) string {
	var out []byte
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			out = append(out, raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'b', 'f':
		case '\\', '(', ')':
			out = append(out, c)
		default:
			if c < '0' || c > '7' {
				out = append(out, c)
				continue
			}
			val := int(c - '0')
			for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			out = append(out, byte(val))
		}
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(out)
	if err != nil {
		return string(out)
	}
	return string(decoded)
}

// cleanText keeps line breaks, collapses other whitespace runs and drops
// non-printable runes.
func cleanText(text string) string {
	var sb strings.Builder
	pendingSpace, pendingNewline := false, false
	for _, r := range text {
		switch {
		case r == '\n':
			pendingNewline = true
		case unicode.IsSpace(r):
			pendingSpace = true
		case unicode.IsPrint(r):
			if sb.Len() > 0 {
				if pendingNewline {
					sb.WriteByte('\n')
				} else if pendingSpace {
					sb.WriteByte(' ')
				}
			}
			pendingSpace, pendingNewline = false, false
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// printableRatio returns the share of printable runes, excluding the
// private use area and the replacement character.
func printableRatio(text string) float64 {
	total, printable := 0, 0
	for _, r := range text {
		total++
		if r == unicode.ReplacementChar || (r >= 0xE000 && r <= 0xF8FF) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(printable) / float64(total)
}
