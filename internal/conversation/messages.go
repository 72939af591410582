package conversation

import (
	"bytes"
	"fmt"
	"text/template"
)

// Messages holds every text the conversation sends to users.
type Messages struct {
	AskEmail          string
	InvalidEmail      string
	AskSubject        string
	BlankSubject      string
	AskName           string
	BlankName         string
	AskAttachment     string
	InvalidAttachment string
	ExpectText        string
	Sent              string
	Failed            string
	Cancelled         string
	NothingToCancel   string
	TimedOut          string
}

// DefaultMessages returns the stock English texts.
func DefaultMessages() Messages {
	return Messages{
		AskEmail:          "Please enter the recipient's email address:",
		InvalidEmail:      "Invalid email format. Please enter a valid email address:",
		AskSubject:        "Enter the subject of the email:",
		BlankSubject:      "The subject cannot be empty. Enter the subject of the email:",
		AskName:           "Enter the recipient's name:",
		BlankName:         "The name cannot be empty. Enter the recipient's name:",
		AskAttachment:     "Please send an attachment (e.g., CV file) or type 'no' to proceed without an attachment:",
		InvalidAttachment: "Invalid input. Please send a file, photo, or type 'no'.",
		ExpectText:        "Please answer with a text message.",
		Sent:              "Email successfully sent!",
		Failed:            "Failed to send email due to an error.",
		Cancelled:         "Operation canceled.",
		NothingToCancel:   "No active operation to cancel.",
		TimedOut:          "Timeout reached. Operation canceled due to inactivity. Please start again with /start.",
	}
}

// withDefaults fills empty texts from DefaultMessages.
func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.AskEmail, d.AskEmail)
	fill(&m.InvalidEmail, d.InvalidEmail)
	fill(&m.AskSubject, d.AskSubject)
	fill(&m.BlankSubject, d.BlankSubject)
	fill(&m.AskName, d.AskName)
	fill(&m.BlankName, d.BlankName)
	fill(&m.AskAttachment, d.AskAttachment)
	fill(&m.InvalidAttachment, d.InvalidAttachment)
	fill(&m.ExpectText, d.ExpectText)
	fill(&m.Sent, d.Sent)
	fill(&m.Failed, d.Failed)
	fill(&m.Cancelled, d.Cancelled)
	fill(&m.NothingToCancel, d.NothingToCancel)
	fill(&m.TimedOut, d.TimedOut)
	return m
}

// prompt returns the question asked at stage.
func (m Messages) prompt(stage Stage) string {
	switch stage {
	case StageAwaitingEmail:
		return m.AskEmail
	case StageAwaitingSubject:
		return m.AskSubject
	case StageAwaitingName:
		return m.AskName
	case StageAwaitingAttachment:
		return m.AskAttachment
	}
	return ""
}

// DefaultBodyTemplate greets the recipient by name.
const DefaultBodyTemplate = "Good afternoon {{.Name}},\n\nPlease find attached CV file.\n\nBest regards,\n\n{{.Signature}}"

// BodyData is the input of the body template.
type BodyData struct {
	Name      string
	Subject   string
	Signature string
}

// BodyRenderer produces the email body from collected fields.
type BodyRenderer struct {
	tmpl      *template.Template
	signature string
}

// NewBodyRenderer parses text; an empty text selects DefaultBodyTemplate.
func NewBodyRenderer(text, signature string) (*BodyRenderer, error) {
	if text == "" {
		text = DefaultBodyTemplate
	}
	tmpl, err := template.New("body").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse body template: %w", err)
	}
	return &BodyRenderer{tmpl: tmpl, signature: signature}, nil
}

// Render executes the template for the collected fields.
func (r *BodyRenderer) Render(f Fields) (string, error) {
	var buf bytes.Buffer
	data := BodyData{Name: f.RecipientName, Subject: f.Subject, Signature: r.signature}
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render body: %w", err)
	}
	return buf.String(), nil
}
