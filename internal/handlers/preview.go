package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/eventdrop/pkg/authgate"
	"github.com/dmitrymomot/eventdrop/pkg/httperr"
	"github.com/dmitrymomot/eventdrop/pkg/preview"
)

// previewCacheControl marks preview responses as immutable: the output is a
// deterministic function of the file content and the query parameters, so
// any change produces a different URL or different bytes anyway.
const previewCacheControl = "public, max-age=31536000, immutable"

func (h *Handler) previewFile(w http.ResponseWriter, r *http.Request) {
	ev, err := h.resolveEvent(r)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	grant, err := h.authorize(r, ev, authgate.RoleAdmin, authgate.RoleGuest)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	if err := requireDownload(grant); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	folder, err := parseFolder(r)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	name := chi.URLParam(r, "filename")
	if !preview.Supported(name) {
		httperr.Respond(w, r, preview.ErrUnsupportedType, h.logger)
		return
	}

	params, err := previewParams(r)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	// The source is only read once the type and parameters are acceptable.
	src, _, err := h.files.ReadAll(ev.ID, folder, name)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	img, err := preview.Render(src, name, params)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", previewCacheControl)
	_, _ = w.Write(img.Data)
}

// previewParams reads the transform parameters from the query string.
// Range validation happens inside the preview package, before any decode;
// here only syntactic parsing is done.
func previewParams(r *http.Request) (preview.Params, error) {
	q := r.URL.Query()
	params := preview.Params{
		Format: q.Get("format"),
		Fit:    q.Get("fit"),
	}

	for _, p := range []struct {
		key string
		dst *int
	}{
		{"w", &params.Width},
		{"h", &params.Height},
		{"q", &params.Quality},
	} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return preview.Params{}, httperr.ErrInvalidInput
		}
		*p.dst = v
	}
	return params, nil
}
