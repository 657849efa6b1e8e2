package errors

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode identifies a failure class.
type ErrorCode int

// Codes are grouped by module.
const (
	// General (1000-1999)
	ErrUnknown       ErrorCode = 1000
	ErrInvalidParam  ErrorCode = 1001
	ErrNotFound      ErrorCode = 1002
	ErrAlreadyExists ErrorCode = 1003
	ErrTimeout       ErrorCode = 1005
	ErrCanceled      ErrorCode = 1006

	// Game state (2000-2999)
	ErrGameNotFound       ErrorCode = 2000
	ErrGameNotInLobby     ErrorCode = 2001
	ErrGameAlreadyStarted ErrorCode = 2002
	ErrGameFull           ErrorCode = 2003
	ErrGameExpired        ErrorCode = 2004
	ErrPlayerNotFound     ErrorCode = 2005
	ErrUnitNotFound       ErrorCode = 2006
	ErrUnitNotInitialized ErrorCode = 2007
	ErrUnitAttached       ErrorCode = 2008
	ErrUnitNotAttached    ErrorCode = 2009
	ErrCrossPlayerAttach  ErrorCode = 2010
	ErrObjectiveNotFound  ErrorCode = 2011
	ErrObjectivesExist    ErrorCode = 2012
	ErrNotEnoughPlayers   ErrorCode = 2013
	ErrPlayerHasNoUnits   ErrorCode = 2014
	ErrSessionBusy        ErrorCode = 2015
	ErrJoinCodeExhausted  ErrorCode = 2016

	// Realtime (3000-3999)
	ErrWebSocketUpgrade ErrorCode = 3000
	ErrWebSocketSend    ErrorCode = 3001
	ErrClientNotFound   ErrorCode = 3002
	ErrMessageFormat    ErrorCode = 3003

	// Import (4000-4999)
	ErrImportUpstream  ErrorCode = 4000
	ErrImportBadList   ErrorCode = 4001
	ErrImportTimeout   ErrorCode = 4002

	// Database (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDatabaseWrite   ErrorCode = 5002
	ErrTransaction     ErrorCode = 5003

	// Config (6000-6999)
	ErrConfigLoad  ErrorCode = 6000
	ErrConfigParse ErrorCode = 6001

	// Auth (7000-7999)
	ErrTokenInvalid ErrorCode = 7000
	ErrTokenExpired ErrorCode = 7001
)

var errorMessages = map[ErrorCode]string{
	ErrUnknown:       "unknown error",
	ErrInvalidParam:  "invalid parameter",
	ErrNotFound:      "resource not found",
	ErrAlreadyExists: "resource already exists",
	ErrTimeout:       "operation timed out",
	ErrCanceled:      "operation canceled",

	ErrGameNotFound:       "game not found",
	ErrGameNotInLobby:     "game is not in the lobby",
	ErrGameAlreadyStarted: "game has already started",
	ErrGameFull:           "game is full",
	ErrGameExpired:        "game has expired",
	ErrPlayerNotFound:     "player not found in game",
	ErrUnitNotFound:       "unit not found in game",
	ErrUnitNotInitialized: "unit has no game state",
	ErrUnitAttached:       "unit is attached to another unit",
	ErrUnitNotAttached:    "unit is not attached to any unit",
	ErrCrossPlayerAttach:  "cannot attach to a unit owned by another player",
	ErrObjectiveNotFound:  "objective not found in game",
	ErrObjectivesExist:    "objectives already exist for this game",
	ErrNotEnoughPlayers:   "not enough players to start",
	ErrPlayerHasNoUnits:   "player has no units",
	ErrSessionBusy:        "game session is busy",
	ErrJoinCodeExhausted:  "could not allocate a unique join code",

	ErrWebSocketUpgrade: "websocket upgrade failed",
	ErrWebSocketSend:    "websocket send failed",
	ErrClientNotFound:   "client not found",
	ErrMessageFormat:    "malformed message",

	ErrImportUpstream: "army list service unavailable",
	ErrImportBadList:  "army list is invalid or expired",
	ErrImportTimeout:  "army list request timed out",

	ErrDatabaseConnect: "database connection failed",
	ErrDatabaseQuery:   "database query failed",
	ErrDatabaseWrite:   "database write failed",
	ErrTransaction:     "transaction failed",

	ErrConfigLoad:  "failed to load configuration",
	ErrConfigParse: "failed to parse configuration",

	ErrTokenInvalid: "invalid token",
	ErrTokenExpired: "token has expired",
}

// AppError carries a code, a stable message, and optional detail/cause.
type AppError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Cause   error        `json:"-"`
	Stack   []StackFrame `json:"-"`
}

// StackFrame is one captured caller.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails sets the detail text.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// New creates an AppError for the given code.
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}
	err := &AppError{Code: code, Message: message}
	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}
	err.captureStack(2)
	return err
}

// Newf creates an AppError with formatted details.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code to an underlying error. An existing AppError keeps
// its original code.
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}
	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}
	return appErr
}

// Wrapf wraps with formatted details.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

// GetCode extracts the code, ErrUnknown for foreign errors.
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrUnknown
}

// HTTPStatus maps the code onto an HTTP status.
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code == ErrNotFound,
		e.Code == ErrGameNotFound,
		e.Code == ErrPlayerNotFound,
		e.Code == ErrUnitNotFound,
		e.Code == ErrObjectiveNotFound:
		return 404
	case e.Code == ErrGameFull,
		e.Code == ErrCrossPlayerAttach,
		e.Code == ErrAlreadyExists,
		e.Code == ErrObjectivesExist,
		e.Code == ErrJoinCodeExhausted:
		return 409
	case e.Code == ErrGameNotInLobby,
		e.Code == ErrGameAlreadyStarted,
		e.Code == ErrGameExpired,
		e.Code == ErrUnitAttached,
		e.Code == ErrUnitNotAttached,
		e.Code == ErrUnitNotInitialized,
		e.Code == ErrNotEnoughPlayers,
		e.Code == ErrPlayerHasNoUnits:
		return 422
	case e.Code == ErrInvalidParam, e.Code == ErrMessageFormat, e.Code == ErrImportBadList:
		return 400
	case e.Code == ErrSessionBusy:
		return 423
	case e.Code == ErrTimeout, e.Code == ErrImportTimeout:
		return 408
	case e.Code == ErrTokenInvalid, e.Code == ErrTokenExpired:
		return 401
	case e.Code == ErrImportUpstream:
		return 502
	case e.Code >= 5000 && e.Code <= 5999:
		return 503
	default:
		return 500
	}
}

// IsRetryable reports whether a caller may reasonably retry.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case ErrTimeout, ErrSessionBusy, ErrImportTimeout, ErrImportUpstream, ErrDatabaseConnect:
		return true
	default:
		return false
	}
}

func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return
	}
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if strings.Contains(frame.Function, "runtime.") ||
			strings.Contains(frame.Function, "github.com/otahak/herald/internal/errors") {
			if !more {
				break
			}
			continue
		}
		e.Stack = append(e.Stack, StackFrame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more || len(e.Stack) >= 10 {
			break
		}
	}
}

// ErrorResponse is the API error envelope.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse builds the envelope.
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
