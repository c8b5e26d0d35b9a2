package auth

import "errors"

// Kind classifies a flow failure.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindUnauthenticated Kind = "unauthenticated"
	KindUnavailable     Kind = "unavailable"
	KindExpired         Kind = "expired"
	KindInternal        Kind = "internal"
)

// Reason tags let clients pick their own wording without widening what the
// user-facing message reveals.
const (
	ReasonInvalidInput       = "invalid_input"
	ReasonConsentRequired    = "consent_required"
	ReasonWeakPassword       = "weak_password"
	ReasonInvalidPhone       = "invalid_phone"
	ReasonEmailTaken         = "email_taken"
	ReasonPhoneTaken         = "phone_taken"
	ReasonCodeInvalid        = "code_invalid"
	ReasonCodeExpired        = "code_expired"
	ReasonUserNotFound       = "user_not_found"
	ReasonWrongPassword      = "wrong_password"
	ReasonInvalidToken       = "invalid_token"
	ReasonOTPInvalid         = "otp_invalid"
	ReasonGatewayUnavailable = "gateway_unavailable"
	ReasonInternal           = "internal"
)

// Error is the structured failure returned by every flow.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the reason tag of err, or ReasonInternal.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonInternal
}

func newError(kind Kind, reason, message string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message, Err: err}
}

func invalid(reason, message string, err error) *Error {
	return newError(KindValidation, reason, message, err)
}

func internal(err error) *Error {
	return newError(KindInternal, ReasonInternal, "internal error", err)
}
