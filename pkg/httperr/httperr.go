// Package httperr is the authoritative mapping from the storage and gate
// packages' typed errors to HTTP statuses and stable machine-readable keys.
// Every error response carries the key, a human-readable message and any
// parameters a client needs to localize it.
package httperr

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/eventdrop/pkg/authgate"
	"github.com/dmitrymomot/eventdrop/pkg/event"
	"github.com/dmitrymomot/eventdrop/pkg/filestore"
	"github.com/dmitrymomot/eventdrop/pkg/preview"
)

// HTTPError pairs an HTTP status code with a stable machine-readable key.
type HTTPError struct {
	Code    int            // HTTP status code
	Key     string         // stable key, e.g. "EVENT_NOT_FOUND"
	Message string         // human-readable message
	Params  map[string]any // parameters for client-side formatting
}

// Error implements the error interface.
func (e HTTPError) Error() string {
	return e.Key
}

var (
	ErrInvalidEventID      = HTTPError{Code: http.StatusBadRequest, Key: "INVALID_EVENT_ID", Message: "Event id must be 3-32 lowercase letters, digits or dashes."}
	ErrInvalidFilename     = HTTPError{Code: http.StatusBadRequest, Key: "INVALID_FILENAME", Message: "Filename contains forbidden characters."}
	ErrInvalidFolder       = HTTPError{Code: http.StatusBadRequest, Key: "INVALID_FOLDER", Message: "Folder name is invalid."}
	ErrInvalidInput        = HTTPError{Code: http.StatusBadRequest, Key: "INVALID_INPUT", Message: "The request is invalid."}
	ErrAuthRequired        = HTTPError{Code: http.StatusUnauthorized, Key: "AUTHORIZATION_REQUIRED", Message: "Authorization is required."}
	ErrForbidden           = HTTPError{Code: http.StatusForbidden, Key: "FORBIDDEN", Message: "Wrong credentials or access is disabled."}
	ErrEventNotFound       = HTTPError{Code: http.StatusNotFound, Key: "EVENT_NOT_FOUND", Message: "No event exists under this id."}
	ErrFileNotFound        = HTTPError{Code: http.StatusNotFound, Key: "FILE_NOT_FOUND", Message: "The requested file does not exist."}
	ErrNoFilesAvailable    = HTTPError{Code: http.StatusNotFound, Key: "NO_FILES_AVAILABLE", Message: "There are no files to archive."}
	ErrEventIDTaken        = HTTPError{Code: http.StatusConflict, Key: "EVENT_ID_TAKEN", Message: "This event id is already taken."}
	ErrFolderExists        = HTTPError{Code: http.StatusConflict, Key: "FOLDER_EXISTS", Message: "A folder with this name already exists."}
	ErrUnsupportedFileType = HTTPError{Code: http.StatusUnsupportedMediaType, Key: "UNSUPPORTED_FILE_TYPE", Message: "Previews are only available for image files."}
	ErrRateLimited         = HTTPError{Code: http.StatusTooManyRequests, Key: "RATE_LIMITED", Message: "Too many failed attempts, try again later."}
	ErrInternal            = HTTPError{Code: http.StatusInternalServerError, Key: "INTERNAL_ERROR", Message: "Something went wrong."}
)

// New creates a custom HTTPError.
func New(code int, key, message string, params map[string]any) HTTPError {
	return HTTPError{Code: code, Key: key, Message: message, Params: params}
}

// Map translates a typed error from the core packages into its HTTP
// representation per the status contract. Unrecognized errors are faults
// and map to a 500.
func Map(err error) HTTPError {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var rateLimited *authgate.RateLimitedError
	if errors.As(err, &rateLimited) {
		e := ErrRateLimited
		e.Params = map[string]any{"retryAfter": rateLimited.RetryAfterSeconds()}
		return e
	}

	switch {
	case errors.Is(err, event.ErrInvalidID):
		return ErrInvalidEventID
	case errors.Is(err, event.ErrInvalidEvent):
		return ErrInvalidInput
	case errors.Is(err, event.ErrNotFound):
		return ErrEventNotFound
	case errors.Is(err, event.ErrConflict):
		return ErrEventIDTaken
	case errors.Is(err, filestore.ErrInvalidFilename):
		return ErrInvalidFilename
	case errors.Is(err, filestore.ErrInvalidFolder):
		return ErrInvalidFolder
	case errors.Is(err, filestore.ErrNotFound):
		return ErrFileNotFound
	case errors.Is(err, filestore.ErrNoFiles):
		return ErrNoFilesAvailable
	case errors.Is(err, filestore.ErrFolderExists):
		return ErrFolderExists
	case errors.Is(err, preview.ErrUnsupportedType):
		return ErrUnsupportedFileType
	case errors.Is(err, preview.ErrInvalidParams), errors.Is(err, preview.ErrInvalidImage):
		return ErrInvalidInput
	case errors.Is(err, authgate.ErrNoCredentials):
		return ErrAuthRequired
	case errors.Is(err, authgate.ErrForbidden):
		return ErrForbidden
	default:
		return ErrInternal
	}
}

// body is the JSON error envelope.
type body struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
}

// Respond maps err and writes the JSON error body. Faults are logged; the
// expected outcomes are normal control flow and stay quiet.
func Respond(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	httpErr := Map(err)

	if httpErr.Code >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if retryAfter, ok := httpErr.Params["retryAfter"].(int); ok {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	w.WriteHeader(httpErr.Code)
	_ = json.NewEncoder(w).Encode(body{
		Error:   httpErr.Key,
		Message: httpErr.Message,
		Params:  httpErr.Params,
	})
}
