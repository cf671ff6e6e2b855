package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Mailer defines the mail-sending collaborator. Delivery is best-effort:
// callers dispatch on a detached goroutine and only log failures, so a mail
// outage never fails the surrounding authentication decision.
type Mailer interface {
	SendUnlockEmail(ctx context.Context, email, token string, expiresAt time.Time) error
	SendLoginCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// SendUnlockEmail sends the out-of-band account unlock link.
func (s *AWSSESEmailService) SendUnlockEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	unlockURL := fmt.Sprintf("%s/unlock-account?token=%s", s.baseURL, token)

	htmlBody := fmt.Sprintf(`
<p>Hello,</p>
<p>Your account was locked after repeated failed sign-in attempts. Click the link below to unlock it:</p>
<p><a href="%s">Unlock Account</a></p>
<p>This link is valid for 1 hour and can be used once.</p>
<p>If you did not try to sign in, we recommend changing your password once the account unlocks.</p>
`, unlockURL)

	textBody := fmt.Sprintf(`Hello,

Your account was locked after repeated failed sign-in attempts. Open the link below to unlock it:

%s

This link is valid for 1 hour and can be used once.

If you did not try to sign in, we recommend changing your password once the account unlocks.
`, unlockURL)

	return s.send(ctx, email, "Account Unlock Request", htmlBody, textBody)
}

// SendLoginCode sends a one-time sign-in code.
func (s *AWSSESEmailService) SendLoginCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	htmlBody := fmt.Sprintf(`
<p>Hello,</p>
<p>Your one-time sign-in code is:</p>
<p style="font-size: 24px; letter-spacing: 4px;"><strong>%s</strong></p>
<p>The code expires in 5 minutes.</p>
<p>If you did not request this code, you can ignore this email.</p>
`, code)

	textBody := fmt.Sprintf(`Hello,

Your one-time sign-in code is: %s

The code expires in 5 minutes.

If you did not request this code, you can ignore this email.
`, code)

	return s.send(ctx, email, "Your sign-in code", htmlBody, textBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, email, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("subject", subject),
		slog.String("message_id", *result.MessageId))

	return nil
}
