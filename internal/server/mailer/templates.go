package mailer

import (
	"bytes"
	"html/template"
)

var (
	verifyTemplate = template.Must(template.New("verify").Parse(
		`<div><p>Click on the link below to verify your email</p><a href="{{.}}">Verify</a></div>`))
	resetTemplate = template.Must(template.New("reset").Parse(
		`<div><p>Click on the link below to reset your password</p><a href="{{.}}">Reset Password</a></div>`))
)

// VerificationEmail renders the subject and body for an email verification link.
func VerificationEmail(link string) (string, string, error) {
	body, err := render(verifyTemplate, link)
	return "Verify Your Email", body, err
}

// ResetPasswordEmail renders the subject and body for a password reset link.
func ResetPasswordEmail(link string) (string, string, error) {
	body, err := render(resetTemplate, link)
	return "Reset Password", body, err
}

func render(t *template.Template, link string) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, link); err != nil {
		return "", err
	}
	return buf.String(), nil
}
