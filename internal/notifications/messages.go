package notifications

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

const approvalSubject = "IoT Lab Borrow Approval"

var (
	approvalTmpl = template.Must(template.New("approval").Parse(`<html><body>
<h3>Borrow request {{.Code}}</h3>
<p>Student <strong>{{.RegNo}}</strong> requested components for project <strong>{{.Project}}</strong>.</p>
<ul>{{range .Lines}}<li>{{.}}</li>{{end}}</ul>
<p>Expected return: {{.ReturnDate}}</p>
<p><a href="{{.Link}}">Review the request</a></p>
</body></html>`))

	plainTmpl = template.Must(template.New("plain").Parse(`<html><body>
<h3>{{.Heading}}</h3>
<p>{{.Body}}</p>
<p>This is an auto-generated email. Please do not reply.</p>
</body></html>`))
)

// ApprovalRequest is the email sent to faculty when a student raises a request.
type ApprovalRequest struct {
	FacultyEmail string
	Code         string
	RegNo        string
	Project      string
	Lines        []string
	ReturnDate   time.Time
	Link         string
}

// BuildApprovalRequest renders the faculty approval email.
func BuildApprovalRequest(in ApprovalRequest) (Message, error) {
	var b strings.Builder
	err := approvalTmpl.Execute(&b, map[string]any{
		"Code":       in.Code,
		"RegNo":      in.RegNo,
		"Project":    in.Project,
		"Lines":      in.Lines,
		"ReturnDate": in.ReturnDate.Format("02 Jan 2006"),
		"Link":       in.Link,
	})
	if err != nil {
		return Message{}, fmt.Errorf("render approval email: %w", err)
	}
	return Message{To: in.FacultyEmail, Subject: approvalSubject, HTML: b.String()}, nil
}

// BuildNotice renders a short status email.
func BuildNotice(to, subject, heading, body string) (Message, error) {
	var b strings.Builder
	if err := plainTmpl.Execute(&b, map[string]string{"Heading": heading, "Body": body}); err != nil {
		return Message{}, fmt.Errorf("render notice: %w", err)
	}
	return Message{To: to, Subject: subject, HTML: b.String()}, nil
}

// ApprovalLink points the faculty landing page at a raw token.
func ApprovalLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/faculty/approve?token=" + token
}
