package reminder

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/restoregeek/restoregeek/internal/model"
)

const (
	defaultSignature = "RestoreGeek Team"
	defaultSubject   = "Calendar Event"
	timeLayout       = "Mon, Jan 2 2006 at 15:04 MST"
)

// Content is the rendered text of one reminder for every channel.
type Content struct {
	SMS          string
	EmailSubject string
	EmailHTML    string
	EmailText    string
}

type messageData struct {
	Name        string
	Subject     string
	Description string
	Project     string
	Location    string
	When        string
	Relative    string
	Signature   string
}

var emailTemplate = template.Must(template.New("reminder").Parse(`<div style="font-family: Arial, sans-serif; padding: 20px; background-color: #f4f4f4; border-radius: 8px;">
  <h1 style="color: #4CAF50;">Calendar Event Reminder</h1>
  <p style="font-size: 16px;">Hi {{.Name}},</p>
  <h2>{{.Subject}}</h2>
  {{if .Description}}<p style="font-size: 16px;">{{.Description}}</p>{{end}}
  <p style="font-size: 16px;"><strong>When:</strong> {{.When}} ({{.Relative}})</p>
  {{if .Project}}<div style="background-color: #ffffff; padding: 15px; border-radius: 4px; margin: 20px 0;">
    <h3 style="color: #333; margin-top: 0;">Project Details</h3>
    <p style="margin: 5px 0;"><strong>Project Name:</strong> {{.Project}}</p>
    {{if .Location}}<p style="margin: 5px 0;"><strong>Location:</strong> {{.Location}}</p>{{end}}
  </div>{{end}}
  <footer style="margin-top: 20px; font-size: 12px; color: #777;">
    <p>Best regards,<br>{{.Signature}}</p>
  </footer>
</div>`))

// Render builds the SMS and email content for a reminder. Relative times are
// measured from now so a late sweep still reads correctly.
func Render(ec *model.EventContext, rcpt model.Recipient, now time.Time) (Content, error) {
	d := messageData{
		Name:        strings.TrimSpace(rcpt.Name),
		Subject:     strings.TrimSpace(ec.Event.Subject),
		Description: strings.TrimSpace(ec.Event.Description),
		When:        ec.Event.Start.UTC().Format(timeLayout),
		Relative:    humanize.RelTime(ec.Event.Start, now, "ago", "from now"),
		Signature:   strings.TrimSpace(ec.Organization.Name),
	}
	if d.Name == "" {
		d.Name = "there"
	}
	if d.Subject == "" {
		d.Subject = defaultSubject
	}
	if d.Signature == "" {
		d.Signature = defaultSignature
	}
	if ec.Project != nil {
		d.Project = ec.Project.Name
		d.Location = strings.TrimSpace(ec.Project.Location)
	}

	var html bytes.Buffer
	if err := emailTemplate.Execute(&html, d); err != nil {
		return Content{}, fmt.Errorf("render reminder email: %w", err)
	}

	return Content{
		SMS:          smsBody(d),
		EmailSubject: "Reminder: " + d.Subject,
		EmailHTML:    html.String(),
		EmailText:    emailText(d),
	}, nil
}

func smsBody(d messageData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nThis is a reminder for your upcoming appointment:\n%s\n%s", d.Name, d.Subject, d.Description)
	if d.Location != "" {
		fmt.Fprintf(&b, "\n\nLocation: %s", d.Location)
	}
	fmt.Fprintf(&b, "\n\nTime: %s (%s)\n\nBest regards,\n%s", d.When, d.Relative, d.Signature)
	return b.String()
}

func emailText(d messageData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n%s\n", d.Name, d.Subject)
	if d.Description != "" {
		fmt.Fprintf(&b, "%s\n", d.Description)
	}
	fmt.Fprintf(&b, "\nWhen: %s (%s)\n", d.When, d.Relative)
	if d.Project != "" {
		fmt.Fprintf(&b, "Project: %s\n", d.Project)
	}
	if d.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", d.Location)
	}
	fmt.Fprintf(&b, "\nBest regards,\n%s", d.Signature)
	return b.String()
}
