package handlers

import (
	"net/http"
	"time"

	"github.com/dmitrymomot/eventdrop/pkg/authgate"
	"github.com/dmitrymomot/eventdrop/pkg/event"
	"github.com/dmitrymomot/eventdrop/pkg/httperr"
)

type createEventRequest struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	AdminPassword    string         `json:"adminPassword"`
	GuestPassword    string         `json:"guestPassword"`
	AllowedMimeTypes []string       `json:"allowedMimeTypes"`
	Settings         event.Settings `json:"settings"`
}

type updateEventRequest struct {
	Name             *string        `json:"name"`
	Description      *string        `json:"description"`
	AllowedMimeTypes *[]string      `json:"allowedMimeTypes"`
	Settings         *settingsPatch `json:"settings"`
	AdminPassword    *string        `json:"adminPassword"`
	GuestPassword    *string        `json:"guestPassword"` // empty string removes the guest password
}

type settingsPatch struct {
	AllowGuestDownload  *bool   `json:"allowGuestDownload"`
	AllowGuestUpload    *bool   `json:"allowGuestUpload"`
	RequireUploadFolder *bool   `json:"requireUploadFolder"`
	UploadFolderHint    *string `json:"uploadFolderHint"`
}

// eventResponse exposes the event's public fields; password hashes never
// leave the server.
type eventResponse struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	AllowedMimeTypes []string       `json:"allowedMimeTypes"`
	Settings         event.Settings `json:"settings"`
	HasGuestPassword bool           `json:"hasGuestPassword"`
}

func toEventResponse(ev *event.Event) eventResponse {
	return eventResponse{
		ID:               ev.ID,
		Name:             ev.Name,
		Description:      ev.Description,
		CreatedAt:        ev.CreatedAt,
		AllowedMimeTypes: ev.AllowedMimeTypes,
		Settings:         ev.Settings,
		HasGuestPassword: ev.Auth.GuestPasswordHash != nil,
	}
}

// errPasswordTooShort reports the minimum length so clients can format a
// localized message.
func errPasswordTooShort() httperr.HTTPError {
	return httperr.New(http.StatusBadRequest, "PASSWORD_TOO_SHORT",
		"Password is too short.", map[string]any{"minLength": MinPasswordLength})
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	if len(req.AdminPassword) < MinPasswordLength {
		httperr.Respond(w, r, errPasswordTooShort(), h.logger)
		return
	}
	adminHash, err := authgate.HashPassword(req.AdminPassword)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	ev := &event.Event{
		ID:               req.ID,
		Name:             req.Name,
		Description:      req.Description,
		CreatedAt:        time.Now().UTC(),
		AllowedMimeTypes: req.AllowedMimeTypes,
		Settings:         req.Settings,
		Auth:             event.Auth{AdminPasswordHash: adminHash},
	}

	if req.GuestPassword != "" {
		if len(req.GuestPassword) < MinPasswordLength {
			httperr.Respond(w, r, errPasswordTooShort(), h.logger)
			return
		}
		guestHash, err := authgate.HashPassword(req.GuestPassword)
		if err != nil {
			httperr.Respond(w, r, err, h.logger)
			return
		}
		ev.Auth.GuestPasswordHash = &guestHash
	}

	if err := h.events.Create(ev); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	h.logger.Info("event created", "event_id", ev.ID)
	respondJSON(w, http.StatusCreated, toEventResponse(ev))
}

func (h *Handler) idAvailability(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if !event.ValidID(id) {
		httperr.Respond(w, r, event.ErrInvalidID, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":        id,
		"available": h.events.IDAvailable(id),
	})
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.resolveEvent(r)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	if _, err := h.authorize(r, ev, authgate.RoleAdmin, authgate.RoleGuest); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, toEventResponse(ev))
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.resolveEvent(r)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	if _, err := h.authorize(r, ev, authgate.RoleAdmin); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	var req updateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	if err := h.mergeUpdate(ev, &req); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	if err := h.events.Save(ev); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	h.logger.Info("event updated", "event_id", ev.ID)
	respondJSON(w, http.StatusOK, toEventResponse(ev))
}

// mergeUpdate applies the partial update onto the loaded record. Only the
// fields the caller sent change; Save re-validates the merged result so a
// patch cannot break the record invariants.
func (h *Handler) mergeUpdate(ev *event.Event, req *updateEventRequest) error {
	if req.Name != nil {
		ev.Name = *req.Name
	}
	if req.Description != nil {
		ev.Description = *req.Description
	}
	if req.AllowedMimeTypes != nil {
		ev.AllowedMimeTypes = *req.AllowedMimeTypes
	}
	if req.Settings != nil {
		if req.Settings.AllowGuestDownload != nil {
			ev.Settings.AllowGuestDownload = *req.Settings.AllowGuestDownload
		}
		if req.Settings.AllowGuestUpload != nil {
			ev.Settings.AllowGuestUpload = *req.Settings.AllowGuestUpload
		}
		if req.Settings.RequireUploadFolder != nil {
			ev.Settings.RequireUploadFolder = *req.Settings.RequireUploadFolder
		}
		if req.Settings.UploadFolderHint != nil {
			ev.Settings.UploadFolderHint = *req.Settings.UploadFolderHint
		}
	}

	if req.AdminPassword != nil {
		if len(*req.AdminPassword) < MinPasswordLength {
			return errPasswordTooShort()
		}
		hash, err := authgate.HashPassword(*req.AdminPassword)
		if err != nil {
			return err
		}
		ev.Auth.AdminPasswordHash = hash
	}

	if req.GuestPassword != nil {
		if *req.GuestPassword == "" {
			ev.Auth.GuestPasswordHash = nil
		} else {
			if len(*req.GuestPassword) < MinPasswordLength {
				return errPasswordTooShort()
			}
			hash, err := authgate.HashPassword(*req.GuestPassword)
			if err != nil {
				return err
			}
			ev.Auth.GuestPasswordHash = &hash
		}
	}
	return nil
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.resolveEvent(r)
	if err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}
	if _, err := h.authorize(r, ev, authgate.RoleAdmin); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	if err := h.events.Delete(ev.ID); err != nil {
		httperr.Respond(w, r, err, h.logger)
		return
	}

	h.logger.Info("event deleted", "event_id", ev.ID)
	w.WriteHeader(http.StatusNoContent)
}
