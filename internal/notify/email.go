// Package notify emails parents about their learners' progress via Amazon SES.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"thinkfirst/internal/models"
)

// Notifier sends parent notifications
type Notifier interface {
	BadgesEarned(ctx context.Context, toEmail, learnerName string, badges []models.AwardedBadge) error
	PoolBorrowed(ctx context.Context, toEmail, learnerName string, remaining int) error
	Enabled() bool
}

// SESAPI is the subset of the SES v2 client used here
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Config holds email settings
type Config struct {
	AWSRegion  string
	FromEmail  string
	FromName   string
	AppBaseURL string
	Debug      bool
}

// EmailNotifier sends notifications through SES. With no sender address it is disabled
// and every send is a no-op.
type EmailNotifier struct {
	client     SESAPI
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	debug      bool
	logger     *zap.Logger
}

// NewEmailNotifier loads the default AWS configuration and creates an SES client
func NewEmailNotifier(ctx context.Context, cfg Config, logger *zap.Logger) (*EmailNotifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FromEmail == "" {
		logger.Info("Email notifications disabled: SES_FROM_EMAIL not configured")
		return &EmailNotifier{logger: logger, debug: cfg.Debug}, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("Email notifications enabled",
		zap.String("from", cfg.FromEmail),
		zap.String("region", cfg.AWSRegion))
	return NewEmailNotifierWithClient(sesv2.NewFromConfig(awsCfg), cfg, logger), nil
}

// NewEmailNotifierWithClient builds an enabled notifier around an existing SES client
func NewEmailNotifierWithClient(client SESAPI, cfg Config, logger *zap.Logger) *EmailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailNotifier{
		client:     client,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		appBaseURL: strings.TrimSuffix(cfg.AppBaseURL, "/"),
		enabled:    client != nil && cfg.FromEmail != "",
		debug:      cfg.Debug,
		logger:     logger,
	}
}

// Enabled reports whether emails are actually sent
func (n *EmailNotifier) Enabled() bool {
	return n.enabled
}

type badgeEmailData struct {
	Learner string
	Badges  []models.AwardedBadge
	AppURL  string
}

var badgesHTML = template.Must(template.New("badges").Parse(`<html><body>
<h2>{{.Learner}} earned {{if eq (len .Badges) 1}}a new badge{{else}}new badges{{end}}!</h2>
<ul>{{range .Badges}}
<li>{{.Icon}} <strong>{{.Name}}</strong>: {{.Description}}</li>{{end}}
</ul>
{{if .AppURL}}<p><a href="{{.AppURL}}">See their progress</a></p>{{end}}
</body></html>`))

// BadgesEarned tells a parent which badges their learner just earned
func (n *EmailNotifier) BadgesEarned(ctx context.Context, toEmail, learnerName string, badges []models.AwardedBadge) error {
	if len(badges) == 0 {
		return nil
	}

	var html bytes.Buffer
	if err := badgesHTML.Execute(&html, badgeEmailData{Learner: learnerName, Badges: badges, AppURL: n.appBaseURL}); err != nil {
		return fmt.Errorf("failed to render badge email: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s earned new badges on ThinkFirst:\n\n", learnerName)
	for _, b := range badges {
		fmt.Fprintf(&text, "- %s: %s\n", b.Name, b.Description)
	}
	if n.appBaseURL != "" {
		fmt.Fprintf(&text, "\nSee their progress: %s\n", n.appBaseURL)
	}

	subject := fmt.Sprintf("%s earned a new badge", learnerName)
	if len(badges) > 1 {
		subject = fmt.Sprintf("%s earned %d new badges", learnerName, len(badges))
	}
	return n.send(ctx, toEmail, subject, html.String(), text.String())
}

// PoolBorrowed tells a parent that a learner's streak was saved by the family pool
func (n *EmailNotifier) PoolBorrowed(ctx context.Context, toEmail, learnerName string, remaining int) error {
	subject := fmt.Sprintf("%s's streak was saved by the family pool", learnerName)
	text := fmt.Sprintf("%s missed a day, so a freeze was borrowed from your family pool to keep their streak alive.\n"+
		"Freezes left in the pool: %d\n", learnerName, remaining)
	html := fmt.Sprintf("<html><body><p>%s missed a day, so a freeze was borrowed from your family pool to keep their streak alive.</p>"+
		"<p>Freezes left in the pool: <strong>%d</strong></p></body></html>", template.HTMLEscapeString(learnerName), remaining)
	return n.send(ctx, toEmail, subject, html, text)
}

func (n *EmailNotifier) send(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	if !n.enabled {
		if n.debug {
			n.logger.Debug("Email skipped, notifier disabled", zap.String("to", toEmail), zap.String("subject", subject))
		}
		return nil
	}
	if toEmail == "" {
		return nil
	}

	fromAddress := n.fromEmail
	if n.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", n.fromName, n.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	fields := []zap.Field{zap.String("to", toEmail), zap.String("subject", subject)}
	if result != nil && result.MessageId != nil {
		fields = append(fields, zap.String("message_id", *result.MessageId))
	}
	n.logger.Info("Email sent", fields...)
	return nil
}
