package domain

import (
	"errors"
	"fmt"
)

// ErrKind is used to map domain errors to HTTP status codes consistently.
type ErrKind string

const (
	KindValidation     ErrKind = "validation"     // 400
	KindAuth           ErrKind = "auth"           // 401
	KindForbidden      ErrKind = "forbidden"      // 403
	KindNotFound       ErrKind = "not_found"      // 404
	KindConflict       ErrKind = "conflict"       // 409
	KindRateLimited    ErrKind = "rate_limited"   // 429
	KindInfrastructure ErrKind = "infrastructure" // 503
	KindInternal       ErrKind = "internal"       // 500
)

// Error is a structured domain error.
// - Kind: high-level category for HTTP mapping
// - Code: stable machine code (clients branch on it, do not change casually)
// - Message: safe summary for clients
// - Meta: optional details (field, reason, restart hint)
// - Cause: wrapped internal error for logging
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// KindOf returns the kind of a domain error, or KindInternal for anything else.
func KindOf(err error) ErrKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// ----------------------
// Validation errors (400)
// ----------------------

func ErrInvalidJSON(cause error) *Error {
	return Wrap(KindValidation, "invalid_json", "invalid JSON body", cause)
}

func ErrMissingField(field string) *Error {
	return WithMeta(New(KindValidation, "missing_field", "missing required field"), map[string]string{
		"field": field,
	})
}

func ErrInvalidField(field, reason string) *Error {
	return WithMeta(New(KindValidation, "invalid_field", "invalid field"), map[string]string{
		"field":  field,
		"reason": reason,
	})
}

func ErrWeakPassword(reason string) *Error {
	return WithMeta(New(KindValidation, "weak_password", "password does not meet requirements"), map[string]string{
		"reason": reason,
	})
}

func ErrUnknownStep(step int) *Error {
	return WithMeta(New(KindValidation, "invalid_step", "unknown signup step"), map[string]string{
		"step": fmt.Sprint(step),
	})
}

// Signup token failures are all 400s: the client must restart from step 1.

func restartMeta() map[string]string {
	return map[string]string{"restart": "step1"}
}

func ErrSignupTokenNotFound() *Error {
	return WithMeta(New(KindValidation, "signup_token_not_found", "signup session not found, please start again"), restartMeta())
}

func ErrSignupTokenExpired() *Error {
	return WithMeta(New(KindValidation, "signup_token_expired", "signup session expired, please start again"), restartMeta())
}

func ErrSignupTokenCorrupt(cause error) *Error {
	return WithMeta(Wrap(KindValidation, "signup_token_corrupt", "signup session is invalid, please start again", cause), restartMeta())
}

func ErrSignupTokenWrongStep(want, got SignupStep) *Error {
	m := restartMeta()
	m["expected_step"] = fmt.Sprint(int(want))
	m["token_step"] = fmt.Sprint(int(got))
	return WithMeta(New(KindValidation, "signup_token_wrong_step", "signup session is not valid for this step, please start again"), m)
}

// ----------------------
// Auth errors (401)
// ----------------------

// IMPORTANT: use this for login failures to avoid user enumeration.
func ErrInvalidCredentials() *Error {
	return New(KindAuth, "invalid_credentials", "invalid email or password")
}

// ErrIdentityMismatch does not say which detail was wrong.
func ErrIdentityMismatch() *Error {
	return WithMeta(New(KindAuth, "identity_mismatch", "the details provided do not match our records"), restartMeta())
}

func ErrTokenMissing() *Error {
	return New(KindAuth, "token_missing", "no token provided")
}

func ErrTokenInvalid() *Error {
	return New(KindAuth, "token_invalid", "invalid token")
}

func ErrTokenExpired() *Error {
	return New(KindAuth, "token_expired", "token is expired")
}

// ----------------------
// Forbidden (403)
// ----------------------

func ErrAccountSuspended() *Error {
	return New(KindForbidden, "account_suspended", "account is suspended, please contact support")
}

// ----------------------
// Not Found (404)
// ----------------------

func ErrRegistryRecordNotFound() *Error {
	return New(KindNotFound, "registry_record_not_found", "no eligible record found for this serial number")
}

func ErrRouteNotFound() *Error {
	return New(KindNotFound, "route_not_found", "route not found")
}

func ErrAccountNotFound() *Error {
	return New(KindNotFound, "account_not_found", "account not found")
}

// ----------------------
// Conflict (409)
// ----------------------

func ErrAccountAlreadyExists() *Error {
	return New(KindConflict, "account_already_exists", "an account already exists for this record")
}

func ErrEmailAlreadyExists() *Error {
	return New(KindConflict, "email_already_exists", "email already registered")
}

func ErrRegistryMultipleMatches() *Error {
	return New(KindConflict, "registry_multiple_matches", "multiple records match these details, please contact support")
}

// ----------------------
// Rate limit (429)
// ----------------------

func ErrRateLimited(scope string) *Error {
	return WithMeta(New(KindRateLimited, "rate_limited", "too many requests"), map[string]string{
		"scope": scope,
	})
}

// ----------------------
// Infrastructure / internal (5xx)
// ----------------------

func ErrDBUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "db_unavailable", "database unavailable, please try again shortly", cause)
}

func ErrDBTimeout(cause error) *Error {
	return Wrap(KindInfrastructure, "db_timeout", "database timed out, please try again shortly", cause)
}

func ErrDBUniqueViolation(cause error) *Error {
	return Wrap(KindConflict, "db_unique_violation", "record already exists", cause)
}

func ErrDBQueryFailed(cause error) *Error {
	return Wrap(KindInternal, "db_query_failed", "internal error", cause)
}

func ErrHashFailed(cause error) *Error {
	return Wrap(KindInternal, "hash_failed", "password hashing failed", cause)
}

func ErrTokenSignFailed(cause error) *Error {
	return Wrap(KindInternal, "token_sign_failed", "token signing failed", cause)
}

func ErrRandomFailed(cause error) *Error {
	return Wrap(KindInternal, "random_failed", "random generation failed", cause)
}

func ErrInternal(cause error) *Error {
	return Wrap(KindInternal, "internal_error", "internal error", cause)
}
