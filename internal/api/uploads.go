package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/starford/paperasse/internal/models"
)

const maxUploadBytes = 50 << 20 // 50 MB

// uploadForm is the parsed multipart body of a document upload.
type uploadForm struct {
	Filename string
	MimeType string
	Data     []byte
	OwnerID  string
	Links    []models.LinkRef
	Tags     []string
	Global   bool
}

// parseUpload reads a multipart/form-data body with a "file" field and the
// optional "links" (JSON array), "tags" (comma separated or repeated),
// "global" and "ownerId" fields.
func parseUpload(w http.ResponseWriter, r *http.Request) (*uploadForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("file too large or invalid multipart")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("missing 'file' field in multipart form")
	}
	defer file.Close()

	name := filepath.Base(filepath.Clean(header.Filename))
	if name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, "..") {
		return nil, fmt.Errorf("invalid filename: %s", header.Filename)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file")
	}

	form := &uploadForm{
		Filename: name,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
		OwnerID:  r.FormValue("ownerId"),
	}

	if raw := r.FormValue("links"); raw != "" {
		var links []LinkRequest
		if err := json.Unmarshal([]byte(raw), &links); err != nil {
			return nil, fmt.Errorf("links must be a JSON array")
		}
		for i, l := range links {
			if err := l.Validate(); err != nil {
				return nil, fmt.Errorf("links[%d]: %v", i, err)
			}
			form.Links = append(form.Links, l.Ref())
		}
	}

	for _, v := range r.MultipartForm.Value["tags"] {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				form.Tags = append(form.Tags, tag)
			}
		}
	}

	if raw := r.FormValue("global"); raw != "" {
		global, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("global must be a boolean")
		}
		form.Global = global
	}
	return form, nil
}
