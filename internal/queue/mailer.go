package queue

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[EventType]emailTemplate{
	EventInvite: {
		subject: template.Must(template.New("invite_subject").Parse(
			`{{if .ManagerName}}{{.ManagerName}}{{else}}Someone{{end}} invited you to {{.GameName}}`)),
		body: template.Must(template.New("invite_body").Parse(
			`Hi,

{{if .ManagerName}}{{.ManagerName}}{{else}}The manager{{end}} invited you to pick squares in "{{.GameName}}".

Join here: {{.Link}}
`)),
	},
	EventPaymentReminder: {
		subject: template.Must(template.New("reminder_subject").Parse(
			`{{.HoursRemaining}}h left to pay for your squares in {{.GameName}}`)),
		body: template.Must(template.New("reminder_body").Parse(
			`Hi {{or .RecipientName "there"}},

You have {{.SquareCount}} unpaid square{{if ne .SquareCount 1}}s{{end}} in "{{.GameName}}".
They will be released in about {{.HoursRemaining}} hour{{if ne .HoursRemaining 1}}s{{end}} unless the manager confirms your payment.

View the grid: {{.Link}}
`)),
	},
	EventPaymentConfirmed: {
		subject: template.Must(template.New("confirmed_subject").Parse(
			`Payment confirmed for {{.GameName}}`)),
		body: template.Must(template.New("confirmed_body").Parse(
			`Hi {{or .RecipientName "there"}},

The manager confirmed payment for {{.SquareCount}} square{{if ne .SquareCount 1}}s{{end}} in "{{.GameName}}".

View the grid: {{.Link}}
`)),
	},
}

// Render turns an event into an email.  Unknown event types are an error.
func Render(ev NotificationEvent) (Message, error) {
	tpl, ok := templates[ev.Type]
	if !ok {
		return Message{}, fmt.Errorf("no template for event type %q", ev.Type)
	}
	if strings.TrimSpace(ev.RecipientEmail) == "" {
		return Message{}, fmt.Errorf("%s event without recipient", ev.Type)
	}
	var subj, body bytes.Buffer
	if err := tpl.subject.Execute(&subj, ev); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	if err := tpl.body.Execute(&body, ev); err != nil {
		return Message{}, fmt.Errorf("render body: %w", err)
	}
	return Message{To: ev.RecipientEmail, Subject: subj.String(), Body: body.String()}, nil
}

// FileMailer appends messages to a local file instead of talking to an
// SMTP relay.  Each message is one block separated by a blank line.
type FileMailer struct {
	Path string
	Now  func() time.Time

	mu sync.Mutex
}

// NewFileMailer returns a FileMailer writing to path.
func NewFileMailer(path string) *FileMailer {
	return &FileMailer{Path: path, Now: time.Now}
}

func (f *FileMailer) Send(_ context.Context, m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	file, err := os.OpenFile(f.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open mail log: %w", err)
	}
	defer file.Close()

	block := fmt.Sprintf("[%s] to=%s\nsubject: %s\n\n%s\n",
		f.Now().UTC().Format(time.RFC3339), m.To, m.Subject, m.Body)
	if _, err := file.WriteString(block); err != nil {
		return fmt.Errorf("write mail log: %w", err)
	}
	return nil
}
