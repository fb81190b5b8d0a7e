package storage

import "errors"

// DonationApply is the atomic unit written after the gateway confirms a
// donation charge: payment row, donation row and goal progress land together
// or not at all.
type DonationApply struct {
	GatewayID string
	Amount    int64
	CreatorID int64
	UserID    *int64
	Message   string
}

// EnrollmentApply is the atomic unit written after the gateway confirms a
// membership charge. Change distinguishes a tier change from a fresh enroll.
type EnrollmentApply struct {
	GatewayID    string
	Amount       int64
	UserID       int64
	MembershipID int64
	Change       bool
}

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrCreatorNotFound      = errors.New("creator not found")
	ErrMembershipNotFound   = errors.New("membership not found")
	ErrEnrollmentNotFound   = errors.New("enrollment not found")
	ErrAlreadyEnrolled      = errors.New("user already enrolled with this creator")
	ErrDowngradeWhileActive = errors.New("cannot downgrade an active enrollment")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrGoalNotFound         = errors.New("donation goal not found")
	ErrPaymentExists        = errors.New("payment already processed")
)
