package email

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// Template names.
const (
	TemplateOTP     = "otp"
	TemplateWelcome = "welcome"
)

// OTPData fills the password reset template.
type OTPData struct {
	Name    string
	Code    string
	Minutes int
}

// WelcomeData fills the new employee template.
type WelcomeData struct {
	Name     string
	Company  string
	Email    string
	LoginURL string
}

type mailTemplate struct {
	subject string
	body    *template.Template
}

// Raw HTML in template output is escaped by goldmark (WithUnsafe is not set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

var templates = map[string]mailTemplate{
	TemplateOTP: {
		subject: "Your password reset code",
		body: template.Must(template.New(TemplateOTP).Parse(`Hi {{.Name}},

Use this code to reset your password:

**{{.Code}}**

It expires in {{.Minutes}} minutes. If you did not ask for a reset you can ignore this email.
`)),
	},
	TemplateWelcome: {
		subject: "Your CRM account is ready",
		body: template.Must(template.New(TemplateWelcome).Parse(`Hi {{.Name}},

An account has been created for you at **{{.Company}}**.

Sign in with {{.Email}} at [{{.LoginURL}}]({{.LoginURL}}) using the password your administrator gave you,
then change it from your profile.
`)),
	},
}

// Render fills the named markdown template with data and converts it to HTML.
// PRE: name is one of the Template* constants
// POST: returns the subject line and the HTML body
func Render(name string, data any) (subject, html string, err error) {
	t, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}
	var md bytes.Buffer
	if err := t.body.Execute(&md, data); err != nil {
		return "", "", fmt.Errorf("execute %s template: %w", name, err)
	}
	var out bytes.Buffer
	if err := mdRenderer.Convert(md.Bytes(), &out); err != nil {
		return "", "", fmt.Errorf("render %s markdown: %w", name, err)
	}
	return t.subject, out.String(), nil
}

// Compose renders a template into a request for a single recipient.
func Compose(to, name string, data any) (SendRequest, error) {
	subject, html, err := Render(name, data)
	if err != nil {
		return SendRequest{}, err
	}
	return SendRequest{To: []string{to}, Subject: subject, HTML: html}, nil
}
