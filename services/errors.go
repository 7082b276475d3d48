package services

import "errors"

// ErrorKind classifies failures by how they are reported to clients.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthenticated
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

// Error is a client-reportable failure. Code is stable and machine readable.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrInvalidColor      = &Error{KindValidation, "invalid_color", "color is not in the palette"}
	ErrInvalidCoordinate = &Error{KindValidation, "invalid_coordinate", "coord must be an integer between 1 and 100"}
	ErrUsernameMismatch  = &Error{KindValidation, "username_mismatch", "username does not match the authenticated user"}

	ErrGameNotFound     = &Error{KindNotFound, "game_not_found", "game not found"}
	ErrUserNotFound     = &Error{KindNotFound, "user_not_found", "user not found"}
	ErrPlayerNotInLobby = &Error{KindNotFound, "player_not_in_lobby", "player is not in the lobby"}
	ErrPlayerNotInGame  = &Error{KindNotFound, "player_not_in_game", "player is not part of this game"}

	ErrColorTaken      = &Error{KindConflict, "color_taken", "color already taken"}
	ErrAlreadyJoined   = &Error{KindConflict, "already_joined", "player already in the lobby"}
	ErrLobbyFull       = &Error{KindConflict, "lobby_full", "lobby is full"}
	ErrGameNotWaiting  = &Error{KindConflict, "game_not_waiting", "game has already started"}
	ErrNotReady        = &Error{KindConflict, "not_ready", "not enough players or colors repeat"}
	ErrGameNotActive   = &Error{KindConflict, "game_not_active", "game is not active"}
	ErrAlreadyFinished = &Error{KindConflict, "already_finished", "game already finished"}
	ErrUsernameTaken   = &Error{KindConflict, "username_taken", "username already taken"}

	ErrUnauthenticated    = &Error{KindUnauthenticated, "unauthenticated", "authentication required"}
	ErrInvalidCredentials = &Error{KindUnauthenticated, "invalid_credentials", "invalid credentials"}

	errInternal = &Error{KindInternal, "internal_error", "internal server error"}
)

// ValidationError builds a one-off validation failure for malformed input.
func ValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_request", Message: message}
}

// KindOf classifies err. Anything that is not an *Error is internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicError returns the error safe to show a client: err itself when it is
// reportable, a generic internal error otherwise.
func PublicError(err error) *Error {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e
	}
	return errInternal
}
