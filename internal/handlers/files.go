package handlers

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/eventdrop/pkg/authgate"
	"github.com/dmitrymomot/eventdrop/pkg/filestore"
	"github.com/dmitrymomot/eventdrop/pkg/httperr"
)

var errFileTypeNotAllowed = httperr.New(http.StatusBadRequest, "FILE_TYPE_NOT_ALLOWED",
	"This file type is not allowed for the event.", nil)

var errUploadFolderRequired = httperr.New(http.StatusBadRequest, "UPLOAD_FOLDER_REQUIRED",
	"Guest uploads must go into a folder.", nil)

// requireDownload rejects guests when the event has guest downloads
// disabled. Admins always pass.
func requireDownload(grant authgate.Grant) error {
	if grant.Role == authgate.RoleGuest && !grant.Event.Settings.AllowGuestDownload {
		return authgate.ErrForbidden
	}
	return nil
}

// requireUpload is the upload-side counterpart of requireDownload.
func requireUpload(grant authgate.Grant) error {
	if grant.Role == authgate.RoleGuest && !grant.Event.Settings.AllowGuestUpload {
		return authgate.ErrForbidden
	}
	return nil
}

func (h *Handler) listFiles(w http.ResponseWriter, r *http.Request) {
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

	listing, err := h.files.List(ev.ID, folder)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

func (h *Handler) uploadFiles(w http.ResponseWriter, r *http.Request) {
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
	folder, err := parseFolder(r)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	if grant.Role == authgate.RoleGuest && ev.Settings.RequireUploadFolder && folder.IsRoot() {
		httperr.Respond(w, r, errUploadFolderRequired, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httperr.Respond(w, r, httperr.ErrInvalidInput, h.logger)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		httperr.Respond(w, r, httperr.ErrInvalidInput, h.logger)
		return
	}

	// Stage everything first; placement commits the batch. If anything
	// fails along the way the staged copies are discarded explicitly, the
	// store does not auto-rollback.
	var staged []filestore.StagedFile
	for _, fh := range fileHeaders {
		mimeType, err := sniffMimeType(fh)
		if err != nil {
			h.files.DiscardStaged(staged...)
			httperr.Respond(w, r, err, h.logger)
			return
		}
		if !ev.AllowsMimeType(mimeType) {
			h.files.DiscardStaged(staged...)
			httperr.Respond(w, r, errFileTypeNotAllowed, h.logger)
			return
		}

		src, err := fh.Open()
		if err != nil {
			h.files.DiscardStaged(staged...)
			httperr.Respond(w, r, fmt.Errorf("open upload: %w", err), h.logger)
			return
		}
		sf, err := h.files.StageUpload(ev.ID, src, fh.Filename)
		_ = src.Close()
		if err != nil {
			h.files.DiscardStaged(staged...)
			httperr.Respond(w, r, err, h.logger)
			return
		}
		staged = append(staged, sf)
	}

	placed, err := h.files.PlaceUploads(ev.ID, folder, staged)
	if err != nil {
		h.files.DiscardStaged(staged...)
		httperr.Respond(w, r, err, h.logger)
		return
	}

	h.logger.Info("files uploaded",
		"event_id", ev.ID,
		"folder", folder.String(),
		"count", len(placed),
		"role", string(grant.Role),
	)
	respondJSON(w, http.StatusCreated, map[string]any{"files": placed})
}

// sniffMimeType detects the content type from the file's leading bytes
// rather than trusting the client-declared header. Media type parameters
// (charset) are stripped so the result compares cleanly against the
// event's allow-list.
func sniffMimeType(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return "application/octet-stream", nil
	}

	detected := http.DetectContentType(buf[:n])
	mediaType, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return detected, nil
	}
	return mediaType, nil
}

func (h *Handler) downloadFile(w http.ResponseWriter, r *http.Request) {
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
	f, entry, err := h.files.Open(ev.ID, folder, name)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entry.Name))
	http.ServeContent(w, r, entry.Name, entry.CreatedAt, f)
}

func (h *Handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	ev, err := h.resolveEvent(r)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	if _, err := h.authorize(r, ev, authgate.RoleAdmin); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	folder, err := parseFolder(r)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	if err := h.files.Delete(ev.ID, folder, chi.URLParam(r, "filename")); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) downloadArchive(w http.ResponseWriter, r *http.Request) {
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

	archiveName := ev.ID
	if !folder.IsRoot() {
		archiveName += "-" + folder.String()
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archiveName+".zip"))

	if err := h.files.WriteZip(w, ev.ID, folder); err != nil {
		// The missing-directory case fails before any bytes are written,
		// so the error response still goes out clean. A failure mid-stream
		// can only be logged.
		if errIsBeforeWrite(err) {
			w.Header().Del("Content-Type")
			w.Header().Del("Content-Disposition")
			httperr.Respond(w, r, err, h.logger)
			return
		}
		h.logger.Error("archive stream aborted", "event_id", ev.ID, "error", err)
	}
}

// errIsBeforeWrite reports whether the archive error happened before the
// first byte hit the response.
func errIsBeforeWrite(err error) bool {
	return errors.Is(err, filestore.ErrNoFiles) || errors.Is(err, filestore.ErrInvalidFolder)
}
