package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/paperasse/internal/docservice"
	"github.com/starford/paperasse/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// UploadDocument handles POST /api/documents.
//
//	@Summary		Upload a document, deduplicated by content
//	@Tags			documents
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Document bytes"
//	@Param			links	formData	string	false	"JSON array of link targets"
//	@Param			tags	formData	string	false	"Comma separated tags"
//	@Param			global	formData	bool	false	"Also attach to the global scope"
//	@Success		201		{object}	docservice.UploadResult
//	@Success		200		{object}	docservice.UploadResult	"Exact duplicate, nothing stored"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	form, err := parseUpload(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res, err := h.svc.Upload(r.Context(), docservice.UploadInput{
		TenantID: tenantID(r),
		OwnerID:  form.OwnerID,
		Filename: form.Filename,
		MimeType: form.MimeType,
		Data:     form.Data,
		Links:    form.Links,
		Tags:     form.Tags,
		Global:   form.Global,
	})
	if err != nil {
		writeError(w, r, "upload document", err)
		return
	}
	status := http.StatusCreated
	if res.AlreadyExists {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List documents linked to a scope
//	@Tags			documents
//	@Produce		json
//	@Param			scope	query		string	false	"Linked type, global when omitted"
//	@Param			id		query		string	false	"Linked entity id"
//	@Param			status	query		string	false	"Status filter"
//	@Param			includeArchived	query	bool	false	"Include archived documents"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	DocumentListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	includeArchived, _ := strconv.ParseBool(q.Get("includeArchived"))

	docs, total, err := h.svc.List(r.Context(), tenantID(r), docservice.ListQuery{
		Ref:             models.LinkRef{LinkedType: models.LinkedType(q.Get("scope")), LinkedID: q.Get("id")},
		Status:          models.Status(q.Get("status")),
		IncludeArchived: includeArchived,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		writeError(w, r, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Total: total})
}

// GetDocument handles GET /api/documents/{id}.
//
//	@Summary		Get a document
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document id"
//	@Success		200	{object}	models.Document
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Get(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DownloadDocument handles GET /api/documents/{id}/content.
func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	doc, data, err := h.svc.Content(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "download document", err)
		return
	}
	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("ETag", `"`+doc.ContentHash+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ListVersions handles GET /api/documents/{id}/versions.
//
//	@Summary		List the version chain of a document, oldest first
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document id"
//	@Success		200	{object}	VersionsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id}/versions [get]
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	chain, err := h.svc.Versions(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "list versions", err)
		return
	}
	writeJSON(w, http.StatusOK, VersionsResponse{Versions: chain})
}

// LatestVersion handles GET /api/documents/{id}/latest.
func (h *Handler) LatestVersion(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Latest(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "latest version", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// CreateVersion handles POST /api/documents/{id}/versions.
//
//	@Summary		Store new bytes as the successor of a document
//	@Tags			documents
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id		path		string	true	"Predecessor id"
//	@Param			file	formData	file	true	"Document bytes"
//	@Success		201		{object}	models.Document
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id}/versions [post]
func (h *Handler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	form, err := parseUpload(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	doc, err := h.svc.CreateNewVersion(r.Context(), tenantID(r), chi.URLParam(r, "id"), docservice.VersionInput{
		Filename: form.Filename,
		MimeType: form.MimeType,
		Data:     form.Data,
	})
	if err != nil {
		writeError(w, r, "create version", err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// AddLink handles POST /api/documents/{id}/links.
//
//	@Summary		Attach a document to an entity
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Document id"
//	@Param			body	body		LinkRequest	true	"Link target"
//	@Success		201		{object}	models.DocumentLink
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id}/links [post]
func (h *Handler) AddLink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	link, err := h.svc.Link(r.Context(), tenantID(r), chi.URLParam(r, "id"), req.Ref())
	if err != nil {
		writeError(w, r, "add link", err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

// RemoveLink handles DELETE /api/documents/{id}/links?type=&linkedId=.
func (h *Handler) RemoveLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := models.LinkRef{LinkedType: models.LinkedType(q.Get("type")), LinkedID: q.Get("linkedId")}
	if err := h.svc.Unlink(r.Context(), tenantID(r), chi.URLParam(r, "id"), ref); err != nil {
		writeError(w, r, "remove link", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClassifyDocument handles POST /api/documents/{id}/classify.
//
//	@Summary		Re-run classification on the stored text
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document id"
//	@Success		200	{object}	docservice.ClassifyResult
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id}/classify [post]
func (h *Handler) ClassifyDocument(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Classify(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "classify document", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ReprocessDocument handles POST /api/documents/{id}/reprocess.
func (h *Handler) ReprocessDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reprocess(r.Context(), tenantID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, "reprocess document", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ArchiveDocument handles POST /api/documents/{id}/archive.
func (h *Handler) ArchiveDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Archive(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "archive document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// RejectDocument handles POST /api/documents/{id}/reject.
func (h *Handler) RejectDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Reject(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "reject document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/{id}.
//
//	@Summary		Soft-delete a document
//	@Tags			documents
//	@Param			id	path	string	true	"Document id"
//	@Success		204	"Document deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), tenantID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Analyze handles POST /api/analyze.
//
//	@Summary		Analyze raw text without storing anything
//	@Tags			analysis
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AnalyzeRequest	true	"Text to analyze"
//	@Success		200		{object}	AnalyzeResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/analyze [post]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ext, plan, err := h.svc.Analyze(r.Context(), tenantID(r), req.Text)
	if err != nil {
		writeError(w, r, "analyze", err)
		return
	}
	writeJSON(w, http.StatusOK, AnalyzeResponse{Extraction: ext, Plan: plan})
}

// CheckDuplicates handles POST /api/duplicates/check.
//
//	@Summary		Check content and text hashes against stored documents
//	@Tags			analysis
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DuplicateCheckRequest	true	"Hashes"
//	@Success		200		{object}	models.DuplicateReport
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/duplicates/check [post]
func (h *Handler) CheckDuplicates(w http.ResponseWriter, r *http.Request) {
	var req DuplicateCheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	report, err := h.svc.CheckDuplicates(r.Context(), tenantID(r), models.DuplicateQuery{
		ContentHash: req.ContentHash,
		TextHash:    req.TextHash,
	})
	if err != nil {
		writeError(w, r, "check duplicates", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across extracted text
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), tenantID(r), q, limit)
	if err != nil {
		writeError(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// PutEntity handles PUT /api/catalogue/{kind}/{id}.
//
//	@Summary		Record a catalogue entity documents can link to
//	@Tags			catalogue
//	@Accept			json
//	@Param			kind	path	string			true	"Entity kind"
//	@Param			id		path	string			true	"Entity id"
//	@Param			body	body	EntityRequest	true	"Entity"
//	@Success		204		"Entity stored"
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/catalogue/{kind}/{id} [put]
func (h *Handler) PutEntity(w http.ResponseWriter, r *http.Request) {
	var req EntityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.svc.UpsertEntity(r.Context(), models.Entity{
		TenantID:     tenantID(r),
		Kind:         models.LinkedType(chi.URLParam(r, "kind")),
		ID:           chi.URLParam(r, "id"),
		Label:        req.Label,
		PropertyID:   req.PropertyID,
		ExpectedRent: req.ExpectedRent,
	})
	if err != nil {
		writeError(w, r, "put entity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
