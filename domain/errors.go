package domain

import "errors"

var (
	// ErrInternalServerError will throw if any the Internal Server Error happen
	ErrInternalServerError = errors.New("internal Server Error")
	// ErrNotFound will throw if the requested item is not exists
	ErrNotFound = errors.New("your requested Item is not found")
	// ErrConflict will throw if the current action already exists
	ErrConflict = errors.New("your Item already exist")
	// ErrBadParamInput will throw if the given request-body or params is not valid
	ErrBadParamInput = errors.New("given Param is not valid")
	// ErrForbidden will throw if the caller does not own the resource
	ErrForbidden = errors.New("you are not allowed to perform this action")

	// ErrProjectionNotFound means the projection document of an item is missing.
	// For an item that exists in the fact store this is an integrity error, not an outage.
	ErrProjectionNotFound = errors.New("projection document not found")
	// ErrCursorConflict means another runner advanced the decay cursor first.
	ErrCursorConflict = errors.New("decay cursor moved concurrently")
)
