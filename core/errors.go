package core

import "errors"

var (
	ErrUnknownFile       = errors.New("unknown file")
	ErrDuplicateFileName = errors.New("duplicate file name")
	ErrInvalidFileName   = errors.New("invalid file name")
	ErrLastFile          = errors.New("a room must keep at least one file")
	ErrInvalidPayload    = errors.New("invalid payload")
)

// ErrorCode maps an error to the stable code sent to clients.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownFile):
		return "unknown_file"
	case errors.Is(err, ErrDuplicateFileName):
		return "duplicate_file_name"
	case errors.Is(err, ErrInvalidFileName):
		return "invalid_file_name"
	case errors.Is(err, ErrLastFile):
		return "last_file"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	default:
		return "internal"
	}
}
