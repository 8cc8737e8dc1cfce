// Package ocr is the text-recognition collaborator: it turns stored document
// bytes into text with a confidence score.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned for media types no recognizer handles.
var ErrUnsupported = errors.New("ocr: unsupported media type")

const (
	VendorPDFTextLayer = "pdf-text-layer"
	VendorPlainText    = "plain-text"
)

// Result is the output of a recognition pass.
type Result struct {
	Text       string  `json:"extractedText"`
	Confidence float64 `json:"ocrConfidence"`
	Vendor     string  `json:"ocrVendor"`
}

// Recognizer extracts text from raw document bytes.
type Recognizer interface {
	Recognize(ctx context.Context, filename, mimeType string, data []byte) (Result, error)
}

// TextLayer reads text that is already present in the document: the content
// streams of a PDF or the body of a text file. Scanned images need a real
// OCR engine and are reported as unsupported.
type TextLayer struct{}

// NewTextLayer creates a TextLayer recognizer.
func NewTextLayer() *TextLayer {
	return &TextLayer{}
}

// Recognize dispatches on the media type of data.
func (t *TextLayer) Recognize(ctx context.Context, filename, mimeType string, data []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	mt := DetectMediaType(filename, mimeType, data)
	switch {
	case mt == "application/pdf":
		return recognizePDF(data)
	case strings.HasPrefix(mt, "text/"):
		return recognizePlainText(data)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupported, mt)
	}
}

// DetectMediaType resolves the media type of an upload. A declared type
// wins unless it is empty or generic; then the file extension and finally
// content sniffing decide.
func DetectMediaType(filename, declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		if mt, _, err := mime.ParseMediaType(mime.TypeByExtension(ext)); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}
