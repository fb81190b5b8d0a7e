package views

import (
	"time"

	"creatorfund/internal/models"
)

// UserView is the safe projection of a user record; it never carries the
// password hash or verification token fields.
type UserView struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

func FromUser(u models.User) UserView {
	return UserView{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}

type DonationView struct {
	ID        int64     `json:"id"`
	CreatorID int64     `json:"creator_id"`
	UserID    *int64    `json:"user_id,omitempty"`
	Amount    int64     `json:"amount"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func FromDonation(d models.Donation) DonationView {
	return DonationView{
		ID:        d.ID,
		CreatorID: d.CreatorID,
		UserID:    d.UserID,
		Amount:    d.Amount,
		Message:   d.Message,
		CreatedAt: d.CreatedAt,
	}
}

type EnrollmentView struct {
	ID           int64     `json:"id"`
	MembershipID int64     `json:"membership_id"`
	UserID       int64     `json:"user_id"`
	EnrolledAt   time.Time `json:"enrolled_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Active       bool      `json:"active"`
	PaidAmount   int64     `json:"paid_amount"`
}

func FromEnrollment(e models.EnrolledMembership) EnrollmentView {
	return EnrollmentView{
		ID:           e.ID,
		MembershipID: e.MembershipID,
		UserID:       e.UserID,
		EnrolledAt:   e.EnrolledAt,
		ExpiresAt:    e.ExpiresAt,
		Active:       e.Active,
		PaidAmount:   e.PaidAmount,
	}
}
