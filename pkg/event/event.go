package event

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// idPattern constrains event ids to lowercase letters, digits and dashes,
// 3 to 32 characters. The id doubles as the on-disk directory name.
var idPattern = regexp.MustCompile(`^[a-z0-9\-]{3,32}$`)

// Settings controls what guests may do inside an event.
type Settings struct {
	AllowGuestDownload  bool   `json:"allowGuestDownload"`
	AllowGuestUpload    bool   `json:"allowGuestUpload"`
	RequireUploadFolder bool   `json:"requireUploadFolder"`
	UploadFolderHint    string `json:"uploadFolderHint,omitempty"`
}

// Auth holds the event's password hashes. AdminPasswordHash is always set;
// GuestPasswordHash is nil when no guest password is configured.
type Auth struct {
	GuestPasswordHash *string `json:"guestPasswordHash"`
	AdminPasswordHash string  `json:"adminPasswordHash"`
}

// Event is the record persisted as project.json inside the event directory.
type Event struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	AllowedMimeTypes []string  `json:"allowedMimeTypes"`
	Settings         Settings  `json:"settings"`
	Auth             Auth      `json:"auth"`
}

// ValidID reports whether id is an acceptable event id.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Validate checks the record invariants. It is called on both create and
// save, so a partial update merged upstream cannot leave the record in an
// inconsistent state.
func (e *Event) Validate() error {
	if !ValidID(e.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, e.ID)
	}
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEvent)
	}
	if e.Auth.AdminPasswordHash == "" {
		return fmt.Errorf("%w: admin password hash is required", ErrInvalidEvent)
	}
	if e.Settings.AllowGuestDownload && e.Auth.GuestPasswordHash == nil {
		return fmt.Errorf("%w: guest download requires a guest password", ErrInvalidEvent)
	}
	if !e.Settings.AllowGuestDownload && !e.Settings.AllowGuestUpload {
		return fmt.Errorf("%w: at least one of guest download or guest upload must be enabled", ErrInvalidEvent)
	}
	return nil
}

// AllowsMimeType reports whether mimeType passes the event's allow-list.
// An empty list allows everything. Entries are either exact types
// ("image/jpeg") or wildcards over a major type ("image/*").
func (e *Event) AllowsMimeType(mimeType string) bool {
	if len(e.AllowedMimeTypes) == 0 {
		return true
	}
	mimeType = strings.ToLower(mimeType)
	for _, allowed := range e.AllowedMimeTypes {
		allowed = strings.ToLower(allowed)
		if allowed == mimeType {
			return true
		}
		if major, ok := strings.CutSuffix(allowed, "/*"); ok && strings.HasPrefix(mimeType, major+"/") {
			return true
		}
	}
	return false
}
