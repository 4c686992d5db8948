package errs

import pkgerr "github.com/pkg/errors"

const (
	ServerInternalError = 500

	ArgsError       = 1001
	TokenInvalid    = 1101
	TokenExpired    = 1102
	NoPermission    = 1103
	RecordNotFound  = 1201
	DuplicateRecord = 1202
)

var (
	ErrArgs           = NewCodeError(ArgsError, "ArgsError")
	ErrTokenInvalid   = NewCodeError(TokenInvalid, "TokenInvalidError")
	ErrTokenExpired   = NewCodeError(TokenExpired, "TokenExpiredError")
	ErrNoPermission   = NewCodeError(NoPermission, "NoPermissionError")
	ErrRecordNotFound = NewCodeError(RecordNotFound, "RecordNotFoundError")
	ErrInternalServer = NewCodeError(ServerInternalError, "InternalServerError")
)

// New builds a plain error with optional key/value detail.
func New(msg string, kv ...any) error {
	return pkgerr.New(toString(msg, kv))
}
