package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/eventdrop/pkg/authgate"
	"github.com/dmitrymomot/eventdrop/pkg/httperr"
	"github.com/dmitrymomot/eventdrop/pkg/safename"
)

type folderRequest struct {
	Name string `json:"name"`
}

// namedFolder validates a folder name that must not be root.
func namedFolder(raw string) (safename.Folder, error) {
	folder, ok := safename.ParseFolder(raw)
	if !ok || folder.IsRoot() {
		return safename.Root, httperr.ErrInvalidFolder
	}
	return folder, nil
}

// createFolder is open to admins and to guests with upload rights, so a
// guest honoring requireUploadFolder can create their folder on the way in.
func (h *Handler) createFolder(w http.ResponseWriter, r *http.Request) {
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
	if err := requireUpload(grant); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	var req folderRequest
	if err := decodeJSON(r, &req); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	folder, err := namedFolder(req.Name)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	if err := h.files.CreateFolder(ev.ID, folder); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	h.logger.Info("folder created", "event_id", ev.ID, "folder", folder.String())
	respondJSON(w, http.StatusCreated, map[string]string{"name": folder.String()})
}

func (h *Handler) renameFolder(w http.ResponseWriter, r *http.Request) {
	ev, err := h.resolveEvent(r)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	if _, err := h.authorize(r, ev, authgate.RoleAdmin); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	from, err := namedFolder(chi.URLParam(r, "folder"))
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	var req folderRequest
	if err := decodeJSON(r, &req); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	to, err := namedFolder(req.Name)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	if err := h.files.RenameFolder(ev.ID, from, to); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	h.logger.Info("folder renamed", "event_id", ev.ID, "from", from.String(), "to", to.String())
	respondJSON(w, http.StatusOK, map[string]string{"name": to.String()})
}

func (h *Handler) deleteFolder(w http.ResponseWriter, r *http.Request) {
	ev, err := h.resolveEvent(r)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	if _, err := h.authorize(r, ev, authgate.RoleAdmin); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	folder, err := namedFolder(chi.URLParam(r, "folder"))
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	if err := h.files.DeleteFolder(ev.ID, folder); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	h.logger.Info("folder deleted", "event_id", ev.ID, "folder", folder.String())
	w.WriteHeader(http.StatusNoContent)
}
