package email

import (
	"bytes"
	"fmt"
	"html/template"

	"recruiting-pipeline/internal/domain"
)

const layout = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #0066cc; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background: #f9f9f9; }
        .status { background: white; padding: 15px; border-left: 4px solid #0066cc; margin-top: 10px; font-weight: bold; }
        .footer { text-align: center; padding: 20px; color: #888; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>{{.Title}}</h1></div>
        <div class="content">{{template "body" .}}</div>
        <div class="footer"><p>This is an automated message, please do not reply.</p></div>
    </div>
</body>
</html>`

const welcomeBody = `{{define "body"}}
<p>Hi {{.Name}},</p>
{{if eq .Kind "company_signup"}}
<p>Your company account for <strong>{{.CompanyName}}</strong> is ready. You can now post jobs and review applicants.</p>
{{else if eq .Kind "job_application"}}
<p>Thanks for applying. Your application has been received and the hiring team will review it shortly.</p>
{{else}}
<p>Your candidate account is ready. We will let you know when your resume has been analyzed.</p>
{{end}}
{{end}}`

const statusBody = `{{define "body"}}
<p>Hi {{.Name}},</p>
<p>There is an update on your application{{if .JobTitle}} for <strong>{{.JobTitle}}</strong>{{end}}.</p>
<div class="status">{{.Status}}</div>
{{end}}`

var (
	welcomeTmpl = template.Must(template.Must(template.New("welcome").Parse(layout)).Parse(welcomeBody))
	statusTmpl  = template.Must(template.Must(template.New("status").Parse(layout)).Parse(statusBody))
)

// WelcomeData feeds the post-submission email.
type WelcomeData struct {
	Title       string
	Name        string
	Kind        domain.WizardKind
	CompanyName string
}

// StatusChangeData feeds the candidate status update email.
type StatusChangeData struct {
	Title    string
	Name     string
	JobTitle string
	Status   domain.ApplicationStatus
}

// WelcomeMessage renders the email sent after a successful submission.
func WelcomeMessage(to string, data WelcomeData) (domain.EmailMessage, error) {
	subject := "Welcome aboard"
	if data.Kind == domain.WizardJobApplication {
		subject = "We received your application"
	}
	data.Title = subject
	html, err := render(welcomeTmpl, data)
	if err != nil {
		return domain.EmailMessage{}, err
	}
	return domain.EmailMessage{To: to, Subject: subject, HTML: html}, nil
}

// StatusChangeMessage renders the email sent when a recruiter changes the status.
func StatusChangeMessage(to string, data StatusChangeData) (domain.EmailMessage, error) {
	subject := fmt.Sprintf("Application update: %s", data.Status)
	data.Title = "Application update"
	html, err := render(statusTmpl, data)
	if err != nil {
		return domain.EmailMessage{}, err
	}
	return domain.EmailMessage{To: to, Subject: subject, HTML: html}, nil
}

func render(t *template.Template, data interface{}) (string, error) {
	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return "", fmt.Errorf("failed to execute email template: %w", err)
	}
	return body.String(), nil
}
