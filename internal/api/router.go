package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/paperasse/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group;
// it resolves the tenant itself.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(TenantMiddleware)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", h.UploadDocument)
			r.Get("/", h.ListDocuments)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetDocument)
				r.Delete("/", h.DeleteDocument)
				r.Get("/content", h.DownloadDocument)
				r.Get("/versions", h.ListVersions)
				r.Post("/versions", h.CreateVersion)
				r.Get("/latest", h.LatestVersion)
				r.Post("/links", h.AddLink)
				r.Delete("/links", h.RemoveLink)
				r.Post("/classify", h.ClassifyDocument)
				r.Post("/reprocess", h.ReprocessDocument)
				r.Post("/archive", h.ArchiveDocument)
				r.Post("/reject", h.RejectDocument)
			})
		})

		r.Post("/analyze", h.Analyze)
		r.Post("/duplicates/check", h.CheckDuplicates)
		r.Get("/search", h.Search)
		r.Put("/catalogue/{kind}/{id}", h.PutEntity)
	})

	return r
}
