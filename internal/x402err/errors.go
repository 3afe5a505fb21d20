// Package x402err implements the facilitator's error taxonomy.
//
// Every component below the Gateway reports failures as one of these
// typed errors rather than an opaque error string; the Gateway maps
// each type to an HTTP status and response code exactly once, at the
// boundary.
package x402err

import (
	"errors"
	"fmt"
)

// Code identifies a taxonomy member for HTTP mapping and logging.
type Code string

const (
	CodeConfig      Code = "CONFIG_ERROR"
	CodeNotSupported Code = "NOT_SUPPORTED"
	CodeInvalidHeader Code = "INVALID_HEADER"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeRpc         Code = "RPC_ERROR"
	CodeSettlement  Code = "SETTLEMENT_ERROR"
	CodeRateLimited Code = "RATE_LIMITED"
	CodeInternal    Code = "INTERNAL_ERROR"
)

// Error is the common shape of every taxonomy member.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Config reports a fatal startup misconfiguration (missing required
// env, unparseable registry entry).
func Config(format string, args ...interface{}) *Error {
	return newErr(CodeConfig, format, args...)
}

// NotSupported reports an unknown network or asset.
func NotSupported(format string, args ...interface{}) *Error {
	return newErr(CodeNotSupported, format, args...)
}

// InvalidHeader reports a malformed or incomplete payment header.
func InvalidHeader(format string, args ...interface{}) *Error {
	return newErr(CodeInvalidHeader, format, args...)
}

// Unauthorized reports an authorization that failed a business check
// (insufficient balance, expired window, consumed nonce, allowance).
func Unauthorized(format string, args ...interface{}) *Error {
	return newErr(CodeUnauthorized, format, args...)
}

// Rpc wraps a transient chain/RPC failure.
func Rpc(err error) *Error {
	return &Error{Code: CodeRpc, Message: "rpc failure", Err: err}
}

// Settlement reports an on-chain submission or receipt failure.
func Settlement(format string, args ...interface{}) *Error {
	return newErr(CodeSettlement, format, args...)
}

// RateLimited reports a rate-limit rejection.
func RateLimited(format string, args ...interface{}) *Error {
	return newErr(CodeRateLimited, format, args...)
}

// Internal reports an unexpected condition, mapped to 500.
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}

// As reports whether err is (or wraps) a *Error and, if so, returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if err == nil {
		return nil, false
	}
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
