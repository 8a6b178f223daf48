package usecase

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"authentik-admin/internal/domain"
)

var (
	welcomeTmpl = template.Must(template.New("welcome").Parse(`Welcome, {{.Username}}!

Your account has been created.
Username: {{.Username}}
{{- if .Link}}
Set your password here (the link expires soon): {{.Link}}
{{- else}}
Ask an admin for a password reset link to finish setting up your account.
{{- end}}
{{- if .LoginURL}}

Log in at {{.LoginURL}}
{{- end}}
`))

	recoveryTmpl = template.Must(template.New("recovery").Parse(`Password reset for {{.Username}}

Use this link to choose a new password: {{.Link}}
{{- if .LoginURL}}

Log in at {{.LoginURL}} once you are done.
{{- end}}
`))

	inviteTmpl = template.Must(template.New("invite").Parse(`Invite "{{.Label}}"

Share this link to let someone create an account: {{.Link}}
It expires {{.Expires}}.
`))
)

// Messages renders the operator-facing texts.
type Messages struct {
	loginURL string

	welcome  *template.Template
	recovery *template.Template
	invite   *template.Template
}

func NewMessages(loginURL string) *Messages {
	return &Messages{
		loginURL: strings.TrimSpace(loginURL),
		welcome:  welcomeTmpl,
		recovery: recoveryTmpl,
		invite:   inviteTmpl,
	}
}

func (m *Messages) Welcome(username, link string) (string, error) {
	return render(m.welcome, map[string]string{
		"Username": username,
		"Link":     link,
		"LoginURL": m.loginURL,
	})
}

func (m *Messages) Recovery(username, link string) (string, error) {
	return render(m.recovery, map[string]string{
		"Username": username,
		"Link":     link,
		"LoginURL": m.loginURL,
	})
}

func (m *Messages) Invite(label, link string, expires time.Time) (string, error) {
	return render(m.invite, map[string]string{
		"Label":   label,
		"Link":    link,
		"Expires": expires.UTC().Format("2006-01-02 15:04 MST"),
	})
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrMessageRender, t.Name(), err)
	}
	return buf.String(), nil
}
