package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "approval"}}<p>Hello {{.ApproverName}},</p>
<p>The request <strong>{{.RequestTitle}}</strong> is waiting for your decision as <em>{{.Role}}</em> (step {{.Order}}).</p>
{{if .Comments}}<p>Previous comments: {{.Comments}}</p>{{end}}
<p><a href="{{.ApproveURL}}">Approve</a> &middot; <a href="{{.RejectURL}}">Reject</a></p>{{end}}

{{define "reminder"}}<p>Hello {{.ApproverName}},</p>
<p>The request <strong>{{.RequestTitle}}</strong> has been waiting for your decision as <em>{{.Role}}</em> for longer than agreed. It is overdue by {{.Overdue}}.</p>
<p><a href="{{.ApproveURL}}">Approve</a> &middot; <a href="{{.RejectURL}}">Reject</a></p>{{end}}

{{define "modification"}}<p>Hello,</p>
<p>The RFQ <strong>{{.Title}}</strong> has been updated.</p>
{{if .Changes}}<ul>{{range .Changes}}<li>{{.Field}}: {{.From}} &rarr; {{.To}}</li>{{end}}</ul>{{end}}
{{if .ItemsReplaced}}<p>The item list has been replaced, please review it before responding.</p>{{end}}{{end}}
`))

type ApprovalMail struct {
	ApproverName string
	RequestTitle string
	Role         string
	Order        int
	Comments     string
	ApproveURL   string
	RejectURL    string
	Overdue      string
}

type Change struct {
	Field string
	From  string
	To    string
}

type ModificationMail struct {
	Title         string
	Changes       []Change
	ItemsReplaced bool
}

func ApprovalRequested(m ApprovalMail) (subject, body string, err error) {
	body, err = render("approval", m)
	return fmt.Sprintf("Approval required: %s", m.RequestTitle), body, err
}

func ApprovalReminder(m ApprovalMail) (subject, body string, err error) {
	body, err = render("reminder", m)
	return fmt.Sprintf("Reminder: approval overdue for %s", m.RequestTitle), body, err
}

func ModificationApplied(m ModificationMail) (subject, body string, err error) {
	body, err = render("modification", m)
	return fmt.Sprintf("RFQ updated: %s", m.Title), body, err
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("notify.render: %s: %w", name, err)
	}
	return buf.String(), nil
}
