// Package email publishes account emails to the mail queue. Delivery is the
// mail worker's problem; a publish failure must never roll back the token
// that was issued, only surface as a warning.
package email

import (
	"context"
	"fmt"
	"log/slog"

	sl "creatorfund/internal/lib/logger"
	"creatorfund/internal/models"
)

type Publisher interface {
	PublishEmail(ctx context.Context, msg models.EmailMessage) error
}

func SendVerificationLink(ctx context.Context, log *slog.Logger, pub Publisher, publicURL, to, token string) error {
	msg := models.EmailMessage{
		Email:   to,
		Link:    fmt.Sprintf("%s/auth/verify?token=%s", publicURL, token),
		Purpose: models.PurposeVerifyEmail,
	}

	if err := pub.PublishEmail(ctx, msg); err != nil {
		log.Error("failed to publish verification email", sl.Err(err))
		return err
	}

	return nil
}

func SendPasswordResetLink(ctx context.Context, log *slog.Logger, pub Publisher, publicURL, to, token string) error {
	msg := models.EmailMessage{
		Email:   to,
		Link:    fmt.Sprintf("%s/auth/reset_password?token=%s", publicURL, token),
		Purpose: models.PurposeResetPassword,
	}

	if err := pub.PublishEmail(ctx, msg); err != nil {
		log.Error("failed to publish password reset email", sl.Err(err))
		return err
	}

	return nil
}
