// Package notify delivers report emails through Resend.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"
)

// ErrDisabled is returned when no Resend API key is configured.
var ErrDisabled = errors.New("email delivery is not configured")

// ErrNoRecipients is returned when a message has no recipients.
var ErrNoRecipients = errors.New("at least one recipient is required")

type sender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Line is one labelled value in the email body.
type Line struct {
	Label string
	Value string
}

// Attachment is a file sent with the email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Report is the content of a report email.
type Report struct {
	To          []string
	Subject     string
	Heading     string
	Lines       []Line
	Narrative   string
	Warnings    []string
	Attachments []Attachment
}

// Mailer sends report emails.
type Mailer struct {
	emails sender
	from   string
	logger *slog.Logger
}

// NewMailer creates a Mailer. With an empty apiKey every send returns
// ErrDisabled.
func NewMailer(apiKey, from string, logger *slog.Logger) *Mailer {
	m := &Mailer{
		from:   from,
		logger: logger.With(slog.String("component", "notify")),
	}
	if apiKey != "" {
		m.emails = resend.NewClient(apiKey).Emails
	}
	return m
}

// Enabled reports whether the Mailer can send.
func (m *Mailer) Enabled() bool {
	return m != nil && m.emails != nil
}

// SendReport sends r and returns the provider's message ID.
func (m *Mailer) SendReport(ctx context.Context, r Report) (string, error) {
	if !m.Enabled() {
		m.logger.Warn("resend client not configured, skipping report email")
		return "", ErrDisabled
	}
	req, err := m.Build(r)
	if err != nil {
		return "", err
	}
	resp, err := m.emails.SendWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to send report email: %w", err)
	}
	m.logger.Info("report email sent",
		slog.String("email_id", resp.Id),
		slog.Int("recipients", len(req.To)),
		slog.Int("attachments", len(req.Attachments)))
	return resp.Id, nil
}

// Build renders r into a Resend request.
func (m *Mailer) Build(r Report) (*resend.SendEmailRequest, error) {
	to := make([]string, 0, len(r.To))
	for _, addr := range r.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}
	if r.Subject == "" {
		r.Subject = "Training feedback report"
	}
	if r.Heading == "" {
		r.Heading = r.Subject
	}

	var html bytes.Buffer
	if err := reportTemplate.Execute(&html, r); err != nil {
		return nil, fmt.Errorf("failed to render report email: %w", err)
	}

	req := &resend.SendEmailRequest{
		From:    m.from,
		To:      to,
		Subject: r.Subject,
		Html:    html.String(),
		Text:    plainText(r),
	}
	for _, a := range r.Attachments {
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Content:     a.Content,
		})
	}
	return req, nil
}

func plainText(r Report) string {
	var b strings.Builder
	b.WriteString(r.Heading)
	b.WriteString("\n\n")
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "%s: %s\n", l.Label, l.Value)
	}
	if r.Narrative != "" {
		b.WriteString("\n")
		b.WriteString(r.Narrative)
		b.WriteString("\n")
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: sans-serif; color: #1f2937; margin: 0; padding: 32px 0; }
    .container { max-width: 560px; margin: 0 auto; }
    table { border-collapse: collapse; width: 100%; margin: 24px 0; }
    td { border-bottom: 1px solid #e5e7eb; padding: 8px 4px; }
    td.value { text-align: right; font-weight: 700; }
    .narrative { white-space: pre-line; line-height: 22px; }
    .warnings { color: #b45309; font-size: 13px; }
  </style>
</head>
<body>
  <div class="container">
    <h1>{{.Heading}}</h1>
    {{- if .Lines}}
    <table>
      {{- range .Lines}}
      <tr><td>{{.Label}}</td><td class="value">{{.Value}}</td></tr>
      {{- end}}
    </table>
    {{- end}}
    {{- if .Narrative}}
    <p class="narrative">{{.Narrative}}</p>
    {{- end}}
    {{- if .Warnings}}
    <ul class="warnings">
      {{- range .Warnings}}
      <li>{{.}}</li>
      {{- end}}
    </ul>
    {{- end}}
  </div>
</body>
</html>
`))
