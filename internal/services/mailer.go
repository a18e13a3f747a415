package services

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
)

const mailLayout = `{{define "layout"}}<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
{{template "body" .}}
<p>Best regards,<br><strong>AlphaZee Team</strong></p>
<hr style="border: none; border-top: 1px solid #e5e7eb; margin: 30px 0;">
<p style="font-size: 12px; color: #6b7280;">This email was sent to {{.User.Email}}.</p>
</div>
</body>
</html>{{end}}
{{define "button"}}<div style="margin: 30px 0;"><a href="{{.Href}}" style="background-color: {{.Color}}; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">{{.Label}}</a></div>{{end}}`

var mailBodies = map[string]string{
	"welcome": `{{define "body"}}<h1 style="color: #2563eb;">Welcome to AlphaZee Platform!</h1>
<p>Dear {{.User.FirstName}},</p>
<p>Thank you for joining AlphaZee Platform. Your account has been created successfully.</p>
{{if .Password}}<div style="background-color: #f3f4f6; padding: 20px; border-radius: 8px; margin: 20px 0;">
<h3 style="margin-top: 0;">Your Login Credentials:</h3>
<p><strong>Email:</strong> {{.User.Email}}</p>
<p><strong>Password:</strong> {{.Password}}</p>
</div>
<p style="color: #dc2626;"><strong>Important:</strong> Please log in and change your password as soon as possible.</p>{{end}}
{{template "button" (button (printf "%s/login" .FrontendURL) "#2563eb" "Login to Your Account")}}{{end}}`,

	"password_reset": `{{define "body"}}<h1 style="color: #2563eb;">Password Reset Request</h1>
<p>Dear {{.User.FirstName}},</p>
<p>You have requested to reset your password for your AlphaZee Platform account.</p>
{{template "button" (button .Link "#dc2626" "Reset Your Password")}}
<p>This link will expire in 1 hour. If you did not request this reset, please ignore this email.</p>{{end}}`,

	"project_submitted": `{{define "body"}}<h1 style="color: #2563eb;">Project Submission Received</h1>
<p>Dear {{.User.FirstName}},</p>
<p>We have received your project submission: <strong>{{.Project.Name}}</strong></p>
<div style="background-color: #f3f4f6; padding: 20px; border-radius: 8px; margin: 20px 0;">
<p><strong>Type:</strong> {{with .Project.ProjectType}}{{.Name}}{{else}}N/A{{end}}</p>
<p><strong>Timeline:</strong> {{or .Project.Timeline "Not specified"}}</p>
<p><strong>Budget Range:</strong> {{or .Project.BudgetRange "Not specified"}}</p>
</div>
<p>Our team will review your project and get back to you within 24-48 hours.</p>
{{template "button" (button (printf "%s/dashboard" .FrontendURL) "#2563eb" "View Project Status")}}{{end}}`,

	"project_approved": `{{define "body"}}<h1 style="color: #16a34a;">Project Approved!</h1>
<p>Dear {{.User.FirstName}},</p>
<p>Great news! Your project <strong>{{.Project.Name}}</strong> has been approved.</p>
<div style="background-color: #f0fdf4; padding: 20px; border-radius: 8px; margin: 20px 0; border-left: 4px solid #16a34a;">
<p><strong>Estimated Cost:</strong> {{amount .Project.EstimatedCost}} {{.Currency}}</p>
<p><strong>Timeline:</strong> {{or .Project.Timeline "TBD"}}</p>
<p><strong>Start Date:</strong> {{with .Project.StartDate}}{{.Format "January 02, 2006"}}{{else}}TBD{{end}}</p>
</div>
<p>Please log in to your dashboard to complete identity verification and review your contract once it is sent.</p>
{{template "button" (button (printf "%s/dashboard" .FrontendURL) "#16a34a" "Open Dashboard")}}{{end}}`,

	"milestone_completed": `{{define "body"}}<h1 style="color: #2563eb;">Milestone Completed</h1>
<p>Dear {{.User.FirstName}},</p>
<p>We have completed a milestone for your project <strong>{{.Project.Name}}</strong>.</p>
<div style="background-color: #eff6ff; padding: 20px; border-radius: 8px; margin: 20px 0; border-left: 4px solid #2563eb;">
<h3 style="margin-top: 0;">Milestone: {{.Milestone.Title}}</h3>
<p>{{.Milestone.Description}}</p>
<p><strong>Project Progress:</strong> {{.Project.Progress}}%</p>
</div>
{{template "button" (button (printf "%s/dashboard" .FrontendURL) "#2563eb" "Review Milestone")}}{{end}}`,

	"contract_sent": `{{define "body"}}<h1 style="color: #2563eb;">Contract Ready for Signature</h1>
<p>Dear {{.User.FirstName}},</p>
<p>Contract <strong>{{.Contract.ContractNumber}}</strong> ({{.Contract.Title}}) is ready for your review and signature.</p>
<p><strong>Amount:</strong> {{printf "%.2f" .Contract.Amount}} {{.Contract.Currency}}</p>
{{with .Contract.ExpiryDate}}<p>Please sign before {{.Format "January 02, 2006"}}.</p>{{end}}
{{template "button" (button (printf "%s/dashboard/contracts/%s" .FrontendURL .Contract.ID) "#2563eb" "Review Contract")}}{{end}}`,
}

var mailSubjects = map[string]string{
	"welcome":             "Welcome to AlphaZee Platform",
	"password_reset":      "Password Reset Request - AlphaZee Platform",
	"project_submitted":   "Project Submission Received - AlphaZee Platform",
	"project_approved":    "Project Approved - AlphaZee Platform",
	"milestone_completed": "Milestone Completed - %s",
	"contract_sent":       "Contract Ready for Signature - %s",
}

type mailButton struct {
	Href, Color, Label string
}

type mailData struct {
	User        *models.User
	Project     *models.Project
	Milestone   *models.ProjectMilestone
	Contract    *models.Contract
	Password    string
	Link        string
	FrontendURL string
	Currency    string
}

// Mailer renders transactional emails and hands them to the task queue.
// Enqueue failures are logged; callers never fail because of email.
type Mailer struct {
	queue       TaskQueue
	frontendURL string
	currency    string
	templates   map[string]*template.Template
}

func NewMailer(queue TaskQueue, frontendURL, currency string) *Mailer {
	funcs := template.FuncMap{
		"button": func(href, color, label string) mailButton { return mailButton{href, color, label} },
		"amount": func(v *float64) string {
			if v == nil {
				return "TBD"
			}
			return fmt.Sprintf("%.2f", *v)
		},
	}
	m := &Mailer{
		queue:       queue,
		frontendURL: frontendURL,
		currency:    currency,
		templates:   make(map[string]*template.Template, len(mailBodies)),
	}
	for kind, body := range mailBodies {
		t := template.Must(template.New(kind).Funcs(funcs).Parse(mailLayout))
		m.templates[kind] = template.Must(t.Parse(body))
	}
	return m
}

func (m *Mailer) send(kind, subject string, data mailData) {
	data.FrontendURL = m.frontendURL
	data.Currency = m.currency

	var buf bytes.Buffer
	if err := m.templates[kind].ExecuteTemplate(&buf, "layout", data); err != nil {
		logger.Error().Err(err).Str("kind", kind).Msg("[Mailer] render failed")
		return
	}
	task := &EmailTask{Kind: kind, To: []string{data.User.Email}, Subject: subject, HTML: buf.String()}
	if err := m.queue.Enqueue(task); err != nil {
		logger.Warnf("[Mailer] enqueue %s for %s failed: %v", kind, data.User.Email, err)
	}
}

// SendWelcome includes the login password when it was generated for the user.
func (m *Mailer) SendWelcome(user *models.User, generatedPassword string) {
	m.send("welcome", mailSubjects["welcome"], mailData{User: user, Password: generatedPassword})
}

func (m *Mailer) SendPasswordReset(user *models.User, token string) {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.frontendURL, token)
	m.send("password_reset", mailSubjects["password_reset"], mailData{User: user, Link: link})
}

func (m *Mailer) SendProjectSubmitted(user *models.User, project *models.Project) {
	m.send("project_submitted", mailSubjects["project_submitted"], mailData{User: user, Project: project})
}

func (m *Mailer) SendProjectApproved(user *models.User, project *models.Project) {
	m.send("project_approved", mailSubjects["project_approved"], mailData{User: user, Project: project})
}

func (m *Mailer) SendMilestoneCompleted(user *models.User, project *models.Project, milestone *models.ProjectMilestone) {
	subject := fmt.Sprintf(mailSubjects["milestone_completed"], project.Name)
	m.send("milestone_completed", subject, mailData{User: user, Project: project, Milestone: milestone})
}

func (m *Mailer) SendContractSent(user *models.User, contract *models.Contract) {
	subject := fmt.Sprintf(mailSubjects["contract_sent"], contract.ContractNumber)
	m.send("contract_sent", subject, mailData{User: user, Contract: contract})
}
