package email

import (
	"bytes"
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type leadNotificationEmailData struct {
	BusinessName   string
	CategoryName   string
	MetroName      string
	RequesterName  string
	RequesterEmail string
	RequesterPhone string
	Message        string
	SubmittedAt    string
}

type pendingDigestEmailData struct {
	Count int
	Items []DigestItem
}

func renderEmailTemplate(name string, data any) (string, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
