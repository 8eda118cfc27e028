// Package handlers wires the HTTP API to the storage engine: event CRUD,
// file listing/upload/download, folder management, archive downloads and
// image previews. Every route resolves its event, passes through the auth
// gate with the roles the endpoint allows, and branches guest-only
// restrictions on the returned grant.
package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/eventdrop/pkg/authgate"
	"github.com/dmitrymomot/eventdrop/pkg/clientip"
	"github.com/dmitrymomot/eventdrop/pkg/event"
	"github.com/dmitrymomot/eventdrop/pkg/filestore"
	"github.com/dmitrymomot/eventdrop/pkg/httperr"
	"github.com/dmitrymomot/eventdrop/pkg/safename"
)

// MinPasswordLength is the minimum accepted length for admin and guest
// passwords.
const MinPasswordLength = 8

// Config holds the handler-level knobs.
type Config struct {
	MaxUploadBytes int64 `env:"UPLOAD_MAX_BYTES" envDefault:"104857600"` // 100 MiB per request
}

// Handler carries the dependencies shared by all routes.
type Handler struct {
	events *event.Store
	files  *filestore.Store
	gate   *authgate.Gate
	logger *slog.Logger
	cfg    Config
}

// New creates the HTTP handler set. A nil logger defaults to a discard
// logger.
func New(events *event.Store, files *filestore.Store, gate *authgate.Gate, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 100 << 20
	}
	return &Handler{
		events: events,
		files:  files,
		gate:   gate,
		logger: logger,
		cfg:    cfg,
	}
}

// Router builds the chi router for the API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api/events", func(r chi.Router) {
		r.Post("/", h.createEvent)
		r.Get("/availability", h.idAvailability)

		r.Route("/{eventID}", func(r chi.Router) {
			r.Get("/", h.getEvent)
			r.Patch("/", h.updateEvent)
			r.Delete("/", h.deleteEvent)

			r.Get("/files", h.listFiles)
			r.Post("/files", h.uploadFiles)
			r.Get("/files/{filename}", h.downloadFile)
			r.Delete("/files/{filename}", h.deleteFile)

			r.Get("/archive", h.downloadArchive)
			r.Get("/preview/{filename}", h.previewFile)

			r.Post("/folders", h.createFolder)
			r.Patch("/folders/{folder}", h.renameFolder)
			r.Delete("/folders/{folder}", h.deleteFolder)
		})
	})

	return r
}

// resolveEvent loads the event addressed by the route.
func (h *Handler) resolveEvent(r *http.Request) (*event.Event, error) {
	return h.events.Get(chi.URLParam(r, "eventID"))
}

// authorize runs the gate for the endpoint's allowed roles, keyed by the
// resolved client address.
func (h *Handler) authorize(r *http.Request, ev *event.Event, roles ...authgate.Role) (authgate.Grant, error) {
	return h.gate.Authorize(r, clientip.GetIP(r), ev, roles...)
}

// parseFolder reads the folder query parameter through the safety
// validator. An invalid folder is a 400, never silently treated as root.
func parseFolder(r *http.Request) (safename.Folder, error) {
	folder, ok := safename.ParseFolder(r.URL.Query().Get("folder"))
	if !ok {
		return safename.Root, httperr.ErrInvalidFolder
	}
	return folder, nil
}

// decodeJSON binds the request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return httperr.ErrInvalidInput
	}
	return nil
}

// respondJSON writes v with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
