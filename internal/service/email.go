package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/templui/thrive/internal/i18n"
	"github.com/templui/thrive/internal/markdown"
)

//go:embed emails/*.md
var emailFS embed.FS

const (
	emailMagicLink               = "magic_link"
	emailForgotPassword          = "forgot_password"
	emailWelcome                 = "welcome"
	emailEmailChangeVerification = "email_change_verification"
	emailEmailChangeNotification = "email_change_notification"
	emailAccountDeleted          = "account_deleted"
	emailChallengeCompleted      = "challenge_completed"
)

// emailData is the template input shared by every email.
type emailData struct {
	AppName      string
	SupportEmail string
	Name         string
	URL          string
	Expiry       string
	NewEmail     string
	Challenge    string
	Target       int
}

// emailSender delivers a rendered email. Resend in production.
type emailSender interface {
	Send(ctx context.Context, params *resend.SendEmailRequest) error
}

type resendSender struct {
	client *resend.Client
}

func (r *resendSender) Send(ctx context.Context, params *resend.SendEmailRequest) error {
	_, err := r.client.Emails.SendWithContext(ctx, params)
	return err
}

type EmailService struct {
	sender       emailSender
	fromEmail    string
	isDev        bool
	appURL       string
	appName      string
	supportEmail string
	translator   *i18n.Translator
	parser       *markdown.Parser
	templates    *template.Template
}

func NewEmailService(apiKey, fromEmail, appURL, appName, supportEmail string, isDev bool, translator *i18n.Translator) (*EmailService, error) {
	var sender emailSender
	if apiKey != "" && !isDev {
		sender = &resendSender{client: resend.NewClient(apiKey)}
	}

	templates, err := template.ParseFS(emailFS, "emails/*.md")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &EmailService{
		sender:       sender,
		fromEmail:    fromEmail,
		isDev:        isDev,
		appURL:       appURL,
		appName:      appName,
		supportEmail: supportEmail,
		translator:   translator,
		parser:       markdown.NewParser(),
		templates:    templates,
	}, nil
}

type renderedEmail struct {
	Subject string
	HTML    string
	Text    string
}

func (s *EmailService) render(ctx context.Context, kind, lang string, data emailData) (*renderedEmail, error) {
	data.AppName = s.appName
	data.SupportEmail = s.supportEmail

	var buf bytes.Buffer
	err := s.templates.ExecuteTemplate(&buf, kind+".md", data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s template: %w", kind, err)
	}

	html, meta, err := s.parser.ParseWithFrontmatter(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to render %s email: %w", kind, err)
	}

	subjectKey, _ := meta["subject"].(string)
	subject := s.translator.T(ctx, lang, subjectKey, "app", s.appName, "challenge", data.Challenge)

	return &renderedEmail{
		Subject: subject,
		HTML:    string(html),
		Text:    string(markdown.StripFrontmatter(buf.Bytes())),
	}, nil
}

func (s *EmailService) send(ctx context.Context, kind, to, lang string, data emailData) error {
	email, err := s.render(ctx, kind, lang, data)
	if err != nil {
		return err
	}

	if s.isDev {
		slog.Info("email sent (dev mode)", "type", kind, "to", to, "subject", email.Subject, "url", data.URL)
		return nil
	}

	if s.sender == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	}

	err = s.sender.Send(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}
	slog.Info("email sent", "type", kind, "to", to)
	return nil
}

func (s *EmailService) SendMagicLinkEmail(ctx context.Context, email, lang, token string, expiry time.Duration) error {
	return s.send(ctx, emailMagicLink, email, lang, emailData{
		URL:    fmt.Sprintf("%s/api/auth/magic-link/%s", s.appURL, token),
		Expiry: humanDuration(expiry),
	})
}

func (s *EmailService) SendForgotPasswordEmail(ctx context.Context, email, lang, token string, expiry time.Duration) error {
	return s.send(ctx, emailForgotPassword, email, lang, emailData{
		URL:    fmt.Sprintf("%s/api/auth/forgot-password/%s", s.appURL, token),
		Expiry: humanDuration(expiry),
	})
}

func (s *EmailService) SendWelcomeEmail(ctx context.Context, email, lang, name string) error {
	return s.send(ctx, emailWelcome, email, lang, emailData{
		Name: name,
		URL:  s.appURL,
	})
}

func (s *EmailService) SendEmailChangeVerification(ctx context.Context, newEmail, lang, token, name string, expiry time.Duration) error {
	return s.send(ctx, emailEmailChangeVerification, newEmail, lang, emailData{
		Name:   name,
		URL:    fmt.Sprintf("%s/api/auth/verify-email-change/%s", s.appURL, token),
		Expiry: humanDuration(expiry),
	})
}

func (s *EmailService) SendEmailChangeNotification(ctx context.Context, oldEmail, lang, newEmail, name string) error {
	return s.send(ctx, emailEmailChangeNotification, oldEmail, lang, emailData{
		Name:     name,
		NewEmail: newEmail,
	})
}

func (s *EmailService) SendAccountDeletedEmail(ctx context.Context, email, lang, name string) error {
	return s.send(ctx, emailAccountDeleted, email, lang, emailData{Name: name})
}

func (s *EmailService) SendChallengeCompletedEmail(ctx context.Context, email, lang, name, challengeID, challenge string, target int) error {
	return s.send(ctx, emailChallengeCompleted, email, lang, emailData{
		Name:      name,
		Challenge: challenge,
		Target:    target,
		URL:       fmt.Sprintf("%s/api/challenges/%s/leaderboard", s.appURL, challengeID),
	})
}

// humanDuration renders token lifetimes the way email copy reads them.
func humanDuration(d time.Duration) string {
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%d days", int(d.Hours()/24))
	case d >= 2*time.Hour:
		return fmt.Sprintf("%d hours", int(d.Hours()))
	case d >= time.Hour:
		return "1 hour"
	case d >= 2*time.Minute:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	default:
		return "1 minute"
	}
}
