package email

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"recruiting-pipeline/config"
	"recruiting-pipeline/internal/domain"
)

// SMTPSender handles sending emails via SMTP
type SMTPSender struct {
	host      string
	port      string
	username  string
	password  string
	fromEmail string
	send      func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates a sender with Brevo-style SMTP relay configuration
func NewSMTPSender(cfg *config.Config) *SMTPSender {
	from := cfg.EmailFrom
	if from == "" {
		from = cfg.SMTPUsername
	}
	return &SMTPSender{
		host:      cfg.SMTPHost,
		port:      cfg.SMTPPort,
		username:  cfg.SMTPUsername,
		password:  cfg.SMTPPassword,
		fromEmail: from,
		send:      smtp.SendMail,
	}
}

// IsConfigured checks if the sender has valid SMTP configuration
func (s *SMTPSender) IsConfigured() bool {
	return s.host != "" && s.username != "" && s.password != ""
}

// Send delivers a rendered HTML message. net/smtp has no context support, so
// ctx is only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg domain.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(msg.To, "\r\n") || strings.ContainsAny(msg.Subject, "\r\n") {
		return errors.New("email: header injection attempt")
	}

	raw := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		s.fromEmail,
		msg.To,
		msg.Subject,
		msg.HTML,
	))

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := s.send(addr, auth, s.fromEmail, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SESAPI is the part of the SES client the sender uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender delivers mail through Amazon SES.
type SESSender struct {
	client SESAPI
	from   string
}

func NewSESSender(client SESAPI, from string) *SESSender {
	return &SESSender{client: client, from: from}
}

func (s *SESSender) Send(ctx context.Context, msg domain.EmailMessage) error {
	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(s.from),
	})
	if err != nil {
		return fmt.Errorf("failed to send email via ses: %w", err)
	}
	return nil
}

// LogSender is used when no provider is configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg domain.EmailMessage) error {
	s.log.Info("email provider not configured, message skipped",
		zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// NewNotifier picks the provider named by EMAIL_PROVIDER.
func NewNotifier(ctx context.Context, cfg *config.Config, log *zap.Logger) (domain.Notifier, error) {
	switch cfg.EmailProvider {
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		return NewSESSender(ses.NewFromConfig(awsCfg), cfg.EmailFrom), nil
	case "smtp":
		sender := NewSMTPSender(cfg)
		if sender.IsConfigured() {
			return sender, nil
		}
		log.Warn("SMTP credentials missing, emails will only be logged")
	}
	return NewLogSender(log), nil
}
