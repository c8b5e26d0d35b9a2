package credential

import "time"

// User is a registered portal account.
type User struct {
	ID              int64
	Name            string
	Email           string
	Phone           string
	CountryCode     string
	PasswordHash    string
	PhoneVerified   bool
	EmailVerified   bool
	TermsAccepted   bool
	PrivacyAccepted bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CodeKind tells whether the code value is known locally or held by the OTP gateway.
type CodeKind string

const (
	// KindSelfIssued rows carry the numeric code generated by this service.
	KindSelfIssued CodeKind = "self_issued"
	// KindGatewayManaged rows only track a gateway OTP; Code is empty.
	KindGatewayManaged CodeKind = "gateway_managed"
)

// VerificationCode is a one-time code record keyed by the full phone number.
type VerificationCode struct {
	ID        int64
	Phone     string
	Code      string
	Kind      CodeKind
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// CodeQuery selects the most recent unused code for a phone. Older unused
// rows are superseded and never returned.
type CodeQuery struct {
	Phone string
	Kind  CodeKind
}
