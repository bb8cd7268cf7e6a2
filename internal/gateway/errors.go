package gateway

import (
	"errors"
	"fmt"
)

// Code discriminates action failures for the UI. Local precondition codes
// never touch the network; API_ERROR_<status> and NETWORK_ERROR are the
// infrastructure category and trigger rollback for claim/solve.
type Code string

const (
	CodeUserNotInitialized  Code = "USER_NOT_INITIALIZED"
	CodeTileNotFound        Code = "TILE_NOT_FOUND"
	CodeTileNotOpen         Code = "TILE_NOT_OPEN"
	CodeUserHasActiveLock   Code = "USER_HAS_ACTIVE_LOCK"
	CodeInvalidClaimOrOwner Code = "INVALID_CLAIM_OR_OWNER"
	CodeInvalidSolution     Code = "INVALID_SOLUTION"
	CodeNetworkError        Code = "NETWORK_ERROR"
)

type ActionError struct {
	Code   Code
	Reason string
}

func (e *ActionError) Error() string {
	if e.Reason == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Reason
}

func actionErr(code Code) *ActionError {
	return &ActionError{Code: code}
}

// CodeOf extracts the action code from an error, or "" for nil/foreign
// errors.
func CodeOf(err error) Code {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// APIError is a non-2xx response from the vault backend.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Body)
}

// mapRemoteError turns a transport/API failure into an action error. Known
// statuses map onto protocol codes; anything else keeps its status visible.
func mapRemoteError(err error) *ActionError {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return &ActionError{Code: CodeNetworkError, Reason: err.Error()}
	}
	switch apiErr.Status {
	case 429:
		return actionErr(CodeUserHasActiveLock)
	case 409:
		return actionErr(CodeTileNotOpen)
	case 403:
		return actionErr(CodeInvalidClaimOrOwner)
	default:
		return &ActionError{Code: Code(fmt.Sprintf("API_ERROR_%d", apiErr.Status)), Reason: apiErr.Body}
	}
}
