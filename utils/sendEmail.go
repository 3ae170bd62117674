package utils

import (
	"fmt"
	"io"
	"strconv"

	"welfare-receipts-backend/config"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var mailer *gomail.Dialer

// InitializeMailer builds the SMTP dialer from SMTP_HOST, SMTP_PORT, SMTP_USER and
// SMTP_PASSWORD
func InitializeMailer() {
	mailHost := config.GetEnv("SMTP_HOST")
	mailPort := config.GetEnvOrDefault("SMTP_PORT", "25")
	mailUser := config.GetEnv("SMTP_USER")
	mailPassword := config.GetEnv("SMTP_PASSWORD")

	port, err := strconv.Atoi(mailPort)
	if err != nil {
		config.Logger.Error("Invalid SMTP_PORT value, defaulting to port 25",
			zap.String("provided_port", mailPort),
			zap.Error(err),
		)
		port = 25
	}

	mailer = gomail.NewDialer(mailHost, port, mailUser, mailPassword)
	config.Logger.Info("Mailer initialized successfully")
}

// SMTPMailer sends mail through the package level dialer.
type SMTPMailer struct{}

// SendEmailWithAttachment sends a plain text message with an optional in-memory attachment.
func (SMTPMailer) SendEmailWithAttachment(to, subject, body, attachmentName string, attachment []byte) error {
	if mailer == nil {
		err := fmt.Errorf("mailer is not initialized")
		config.Logger.Error("Email send failed: mailer is not initialized",
			zap.String("to_email", to),
			zap.String("subject", subject),
		)
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", config.GetEnvOrDefault("SMTP_FROM", config.GetEnv("SMTP_USER")))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if attachmentName != "" && len(attachment) > 0 {
		m.Attach(attachmentName, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(attachment)
			return err
		}))
	}

	if err := mailer.DialAndSend(m); err != nil {
		config.Logger.Error("Failed to send email via SMTP",
			zap.String("to_email", to),
			zap.String("subject", subject),
			zap.Bool("has_attachment", attachmentName != ""),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	config.Logger.Info("Email sent successfully",
		zap.String("to_email", to),
		zap.String("subject", subject),
	)
	return nil
}
