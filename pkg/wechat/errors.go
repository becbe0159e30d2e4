package wechat

import (
	"errors"
	"fmt"
)

// Error represents an error response from the WeChat API. The platform
// returns HTTP 200 with an errcode/errmsg body on failure.
type Error struct {
	Code int    `json:"errcode"`
	Msg  string `json:"errmsg"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("wechat: %s (errcode: %d)", e.Msg, e.Code)
}

// IsInvalidCredential returns true if the platform rejected the access
// token. Callers should invalidate the cached token and retry once.
func (e *Error) IsInvalidCredential() bool {
	switch e.Code {
	case 40001, 40014, 42001:
		return true
	}
	return false
}

// IsRateLimited returns true if the API call quota was exceeded
func (e *Error) IsRateLimited() bool {
	return e.Code == 45009 || e.Code == 45011
}

// IsSystemBusy returns true for the platform's transient busy error
func (e *Error) IsSystemBusy() bool {
	return e.Code == -1
}

// AsError extracts a platform *Error from an error chain
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsInvalidCredentialError checks if an error is a rejected access token
func IsInvalidCredentialError(err error) bool {
	if apiErr, ok := AsError(err); ok {
		return apiErr.IsInvalidCredential()
	}
	return false
}

// IsRateLimitedError checks if an error is an exceeded API quota
func IsRateLimitedError(err error) bool {
	if apiErr, ok := AsError(err); ok {
		return apiErr.IsRateLimited()
	}
	return false
}
