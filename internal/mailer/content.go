package mailer

import (
	htmltemplate "html/template"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Fixed user-facing result messages.
const (
	SentMessage     = "Resume sent successfully! Check your email."
	LinkSentMessage = "Resume download link sent successfully! Check your email."
)

type contentData struct {
	SenderName  string
	DownloadURL string
	ExpiryHours string
}

const attachmentText = `Hello,

Thank you for your interest in my work. Please find my resume attached to this email.

If you have any questions or would like to discuss opportunities, please don't hesitate to reach out.

Best regards,
{{.SenderName}}`

const linkText = `Hello,

Thank you for your interest in my work.

You can download my resume using this secure link:
{{.DownloadURL}}

This link will expire in {{.ExpiryHours}} hours.

If you have any questions, please don't hesitate to reach out.

Best regards,
{{.SenderName}}`

const htmlHead = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .button { display: inline-block; padding: 12px 24px; background-color: #0d47a1; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
    .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    .link { word-break: break-all; color: #0d47a1; }
  </style>
</head>
<body>
  <div class="container">
    <p>Hello,</p>
`

const htmlFoot = `    <p>Best regards,<br><strong>{{.SenderName}}</strong></p>
    <div class="footer">
      <p>This is an automated email. Please do not reply directly to this message.</p>
    </div>
  </div>
</body>
</html>`

const attachmentHTML = htmlHead + `    <p>Thank you for your interest in my work. Please find my resume attached to this email.</p>
    <p>If you have any questions or would like to discuss opportunities, please don't hesitate to reach out.</p>
` + htmlFoot

const linkHTML = htmlHead + `    <p>Thank you for your interest in my work.</p>
    <p>You can download my resume using the secure link below:</p>
    <p style="text-align: center;">
      <a href="{{.DownloadURL}}" class="button">Download Resume</a>
    </p>
    <p style="font-size: 12px; color: #666;">
      Or copy this link: <span class="link">{{.DownloadURL}}</span>
    </p>
    <p style="font-size: 12px; color: #666;">
      This link will expire in {{.ExpiryHours}} hours.
    </p>
    <p>If you have any questions, please don't hesitate to reach out.</p>
` + htmlFoot

var (
	attachmentTextTmpl = template.Must(template.New("attachment.txt").Parse(attachmentText))
	linkTextTmpl       = template.Must(template.New("link.txt").Parse(linkText))
	attachmentHTMLTmpl = htmltemplate.Must(htmltemplate.New("attachment.html").Parse(attachmentHTML))
	linkHTMLTmpl       = htmltemplate.Must(htmltemplate.New("link.html").Parse(linkHTML))
)

// renderText executes override when set, else def. Overrides that do not
// parse as templates are used verbatim.
func renderText(override string, def *template.Template, data contentData) (string, error) {
	t := def
	if override != "" {
		parsed, err := template.New("override").Parse(override)
		if err != nil {
			return override, nil
		}
		t = parsed
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func renderHTML(override string, def *htmltemplate.Template, data contentData) (string, error) {
	t := def
	if override != "" {
		parsed, err := htmltemplate.New("override").Parse(override)
		if err != nil {
			return override, nil
		}
		t = parsed
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func expiryHours(d time.Duration) string {
	return strconv.FormatFloat(d.Hours(), 'f', -1, 64)
}
