package models

import "time"

// Verification token purposes. A token issued for one purpose cannot be
// consumed through the other path.
const (
	PurposeVerifyEmail   = "verify_email"
	PurposeResetPassword = "reset_password"
)

type User struct {
	ID         int64
	Email      string
	Username   string
	FirstName  string
	LastName   string
	PassHash   string
	Role       string
	IsVerified bool
	CreatedAt  time.Time
}

// VerificationToken lives on the user row. At most one outstanding token per
// user; issuing a new one overwrites the old.
type VerificationToken struct {
	Token     string
	Purpose   string
	ExpiresAt time.Time
}

type RefreshToken struct {
	ID        int64
	Token     string
	UserID    int64
	ExpiresAt time.Time
	Revoked   bool
}

type Creator struct {
	ID          int64
	UserID      int64
	Bio         string
	Description string
}

type Membership struct {
	ID        int64
	CreatorID int64
	Tier      int
	Name      string
	Amount    int64
	Benefits  string
}

type EnrolledMembership struct {
	ID           int64
	MembershipID int64
	UserID       int64
	EnrolledAt   time.Time
	ExpiresAt    time.Time
	Active       bool
	PaidAmount   int64
	PaymentID    *int64
}

// Payment is created once per confirmed gateway charge and is immutable
// thereafter. GatewayID is the provider's payment identifier and doubles as
// the idempotency key for verification.
type Payment struct {
	ID        int64
	GatewayID string
	Amount    int64
	Status    string
	CreatedAt time.Time
}

type Donation struct {
	ID        int64
	CreatorID int64
	UserID    *int64
	Amount    int64
	Message   string
	PaymentID *int64
	CreatedAt time.Time
}

type DonationGoal struct {
	ID        int64
	CreatorID int64
	Title     string
	Target    int64
	Progress  int64
	Active    bool
	Reached   bool
}

// EmailMessage is what gets published to the mail queue; the mail worker
// renders and sends it.
type EmailMessage struct {
	Email   string `json:"to"`
	Link    string `json:"link"`
	Purpose string `json:"purpose"`
}
