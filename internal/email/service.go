// Package email sends applicant notifications via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

func NewService(config Config) *Service {
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   smtp.PlainAuth("", config.Username, config.Password, config.Host),
	}
}

// IsConfigured reports whether SMTP settings are present. Callers skip
// notifications silently when they are not.
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends a multipart email with an HTML body.
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-planwright"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// ReadinessData fills the plan-ready notification.
type ReadinessData struct {
	AppName     string
	UserName    string
	PlanTitle   string
	Score       int
	GatesPassed int
	GatesTotal  int
}

// SendPlanReadyEmail notifies an applicant that every compliance check
// passed and their plan can be exported for submission.
func (s *Service) SendPlanReadyEmail(to, userName, planTitle string, score, gatesPassed, gatesTotal int) error {
	data := ReadinessData{
		AppName:     "Planwright",
		UserName:    userName,
		PlanTitle:   planTitle,
		Score:       score,
		GatesPassed: gatesPassed,
		GatesTotal:  gatesTotal,
	}

	subject := fmt.Sprintf("Your business plan %q is ready to submit", planTitle)
	html, err := renderTemplate(planReadyEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render plan ready template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

// ExportData fills the export notification.
type ExportData struct {
	AppName   string
	UserName  string
	PlanTitle string
	Format    string
	Draft     bool
}

// SendExportEmail notifies an applicant that an export was produced. Draft
// exports carry a warning that compliance checks are still open.
func (s *Service) SendExportEmail(to, userName, planTitle, format string, draft bool) error {
	data := ExportData{
		AppName:   "Planwright",
		UserName:  userName,
		PlanTitle: planTitle,
		Format:    strings.ToUpper(format),
		Draft:     draft,
	}

	subject := fmt.Sprintf("%s export of %q is ready", data.Format, planTitle)
	html, err := renderTemplate(exportEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render export template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const planReadyEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Your {{.AppName}} plan is ready</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #1a7a4a; padding-bottom: 10px; margin-bottom: 20px; }
        .score { font-size: 28px; font-weight: bold; color: #1a7a4a; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Congratulations, {{.UserName}}!</h2>

    <p>Every compliance check on your business plan <strong>{{.PlanTitle}}</strong> has passed
    ({{.GatesPassed}} of {{.GatesTotal}}).</p>

    <p>Your current readiness score is <span class="score">{{.Score}}/100</span>.</p>

    <p>You can now export the plan as a PDF or DOCX and submit it with your funding application.</p>

    <div class="footer">
        <p>You are receiving this because you are working on a business plan in {{.AppName}}.</p>
    </div>
</body>
</html>`

const exportEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.AppName}} export ready</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #1a7a4a; padding-bottom: 10px; margin-bottom: 20px; }
        .warning { background: #fff3cd; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Hi {{.UserName}},</h2>

    <p>The {{.Format}} export of your business plan <strong>{{.PlanTitle}}</strong> has been produced
    and stored in your plan archive.</p>

    {{if .Draft}}
    <div class="warning">
        <strong>Draft:</strong> not all compliance checks have passed yet. The document is
        watermarked as a draft and is not ready for submission.
    </div>
    {{end}}

    <div class="footer">
        <p>You are receiving this because you are working on a business plan in {{.AppName}}.</p>
    </div>
</body>
</html>`
