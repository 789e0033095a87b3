// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Email is a rendered message ready for delivery.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// CredentialsEmailData holds data for the first-activation message.
type CredentialsEmailData struct {
	SiteName    string
	FullName    string
	Username    string
	Password    string
	Tier        string
	RenewalDate time.Time
}

// RenewalEmailData holds data for reminder, renewed and expired notices.
type RenewalEmailData struct {
	SiteName    string
	FullName    string
	Tier        string
	RenewalDate time.Time
	AmountDue   string // formatted, e.g. "INR 5000.00"
}

// BuildCredentialsEmail creates the message carrying login credentials.
func BuildCredentialsEmail(data CredentialsEmailData) Email {
	var text bytes.Buffer
	fmt.Fprintf(&text, "Hello %s,\n\n", data.FullName)
	fmt.Fprintf(&text, "Your %s %s membership is now active.\n\n", data.SiteName, data.Tier)
	fmt.Fprintf(&text, "Username: %s\n", data.Username)
	fmt.Fprintf(&text, "Password: %s\n\n", data.Password)
	fmt.Fprintf(&text, "Your membership renews on %s.\n", formatDate(data.RenewalDate))
	text.WriteString("Please change your password after your first sign-in.\n")

	return Email{
		Subject:  fmt.Sprintf("Welcome to %s: your login details", data.SiteName),
		TextBody: text.String(),
		HTMLBody: renderHTML(layoutData{
			SiteName: data.SiteName,
			Heading:  "Your membership is active",
			Lines: []string{
				fmt.Sprintf("Hello %s, your %s membership is now active.", data.FullName, data.Tier),
				"Please change your password after your first sign-in.",
			},
			Code: []codeLine{
				{Label: "Username", Value: data.Username},
				{Label: "Password", Value: data.Password},
			},
			Footer: "Renews on " + formatDate(data.RenewalDate),
		}),
	}
}

// BuildRenewalReminder creates the message sent inside the reminder window.
func BuildRenewalReminder(data RenewalEmailData) Email {
	days := int(time.Until(data.RenewalDate).Hours() / 24)
	if days < 0 {
		days = 0
	}
	lines := []string{
		fmt.Sprintf("Hello %s, your %s membership renews on %s (%d days).", data.FullName, data.Tier, formatDate(data.RenewalDate), days),
	}
	if data.AmountDue != "" {
		lines = append(lines, "Amount due: "+data.AmountDue+".")
	}
	lines = append(lines, "Pay before the renewal date to keep your membership active.")

	return Email{
		Subject:  fmt.Sprintf("Your %s membership renews soon", data.SiteName),
		TextBody: strings.Join(lines, "\n") + "\n",
		HTMLBody: renderHTML(layoutData{SiteName: data.SiteName, Heading: "Renewal reminder", Lines: lines}),
	}
}

// BuildRenewedNotice confirms a membership re-activated after renewal.
func BuildRenewedNotice(data RenewalEmailData) Email {
	lines := []string{
		fmt.Sprintf("Hello %s, thank you for renewing your %s membership.", data.FullName, data.Tier),
		"Your membership is active until " + formatDate(data.RenewalDate) + ".",
		"Your existing login details remain valid.",
	}
	return Email{
		Subject:  fmt.Sprintf("Your %s membership has been renewed", data.SiteName),
		TextBody: strings.Join(lines, "\n") + "\n",
		HTMLBody: renderHTML(layoutData{SiteName: data.SiteName, Heading: "Membership renewed", Lines: lines}),
	}
}

// BuildExpiredNotice tells a member their period has ended.
func BuildExpiredNotice(data RenewalEmailData) Email {
	lines := []string{
		fmt.Sprintf("Hello %s, your %s membership ended on %s.", data.FullName, data.Tier, formatDate(data.RenewalDate)),
	}
	if data.AmountDue != "" {
		lines = append(lines, "Pay the renewal fee of "+data.AmountDue+" to reactivate it.")
	} else {
		lines = append(lines, "Renew to reactivate it.")
	}
	return Email{
		Subject:  fmt.Sprintf("Your %s membership has expired", data.SiteName),
		TextBody: strings.Join(lines, "\n") + "\n",
		HTMLBody: renderHTML(layoutData{SiteName: data.SiteName, Heading: "Membership expired", Lines: lines}),
	}
}

// FormatAmount renders minor units as a decimal amount with currency.
func FormatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, minor/100, minor%100)
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2 January 2006")
}

type codeLine struct {
	Label string
	Value string
}

type layoutData struct {
	SiteName string
	Heading  string
	Lines    []string
	Code     []codeLine
	Footer   string
}

var layout = template.Must(template.New("layout").Parse(layoutHTMLTemplate))

func renderHTML(data layoutData) string {
	var buf bytes.Buffer
	_ = layout.Execute(&buf, data)
	return buf.String()
}

const layoutHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Heading}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
              <p style="margin: 8px 0 0; font-size: 16px; color: #6b7280;">{{.Heading}}</p>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              {{range .Lines}}<p style="margin: 0 0 16px; font-size: 16px; color: #374151; line-height: 1.5;">{{.}}</p>
              {{end}}
              {{if .Code}}<div style="background-color: #f3f4f6; border-radius: 8px; padding: 16px 24px;">
                {{range .Code}}<p style="margin: 4px 0; font-size: 15px; color: #1f2937;">{{.Label}}: <span style="font-family: 'Courier New', monospace; font-weight: 700;">{{.Value}}</span></p>
                {{end}}
              </div>{{end}}
            </td>
          </tr>
          {{if .Footer}}<tr>
            <td style="padding: 16px 32px; border-top: 1px solid #e5e7eb; text-align: center; font-size: 12px; color: #9ca3af;">{{.Footer}}</td>
          </tr>{{end}}
        </table>
      </td>
    </tr>
  </table>
</body>
</html>
`
