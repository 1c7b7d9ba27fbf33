// Package email sends transactional mail through the platform run endpoint.
// Two messages exist: a fixed-layout notification to the site owner and a
// templated reply to the submitter.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

// sendModel is the run-endpoint model that delivers email.
const sendModel = "aws/send-email"

// Payload is one outbound message.
type Payload struct {
	SenderName string `json:"-"` // local part; the platform appends its domain
	Receivers  string `json:"receivers"`
	Title      string `json:"title"`
	BodyHTML   string `json:"body_html"`
	ProjectID  string `json:"project_id"`
	ReplyTo    string `json:"reply_to,omitempty"`
	Sender     string `json:"sender,omitempty"`
}

// Client posts email jobs to the run endpoint.
type Client struct {
	baseURL      string
	apiKey       string
	projectID    string
	senderDomain string
	http         *http.Client
	log          *slog.Logger
}

// Config carries the run-endpoint settings.
type Config struct {
	BaseURL      string
	APIKey       string
	ProjectID    string
	SenderDomain string
	Timeout      time.Duration
	Logger       *slog.Logger
}

// NewClient builds an email client. Timeout defaults to 15 seconds.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		projectID:    cfg.ProjectID,
		senderDomain: cfg.SenderDomain,
		http:         &http.Client{Timeout: cfg.Timeout},
		log:          cfg.Logger,
	}
}

type runRequest struct {
	Model  string  `json:"model"`
	Inputs Payload `json:"inputs"`
}

type runResponse struct {
	SendEmailStatus string          `json:"send_email_status"`
	Error           json.RawMessage `json:"error"`
}

// Send delivers one message. A non-success status from the endpoint is
// returned as an error.
func (c *Client) Send(ctx context.Context, p Payload) error {
	p.ProjectID = c.projectID
	if p.SenderName != "" && c.senderDomain != "" {
		p.Sender = p.SenderName + "@" + c.senderDomain
	}

	body, err := json.Marshal(runRequest{Model: sendModel, Inputs: p})
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/run", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Error("email endpoint rejected request", "status", resp.StatusCode, "body", string(snippet))
		return fmt.Errorf("send email: endpoint returned %d", resp.StatusCode)
	}

	var result runResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode email response: %w", err)
	}
	if result.SendEmailStatus != "success" {
		return fmt.Errorf("send email: status %q: %s", result.SendEmailStatus, string(result.Error))
	}
	return nil
}

// RenderTemplate substitutes {{field}} placeholders with submission values,
// then the built-in {{timestamp}}, {{date}}, and {{time}} placeholders with
// the given moment. Nil values render as the empty string.
func RenderTemplate(template string, formData map[string]any, now time.Time) string {
	result := template
	for key, value := range formData {
		str := ""
		if value != nil {
			str = fmt.Sprintf("%v", value)
		}
		result = strings.ReplaceAll(result, "{{"+key+"}}", str)
	}

	result = strings.ReplaceAll(result, "{{timestamp}}", now.UTC().Format(time.RFC3339))
	result = strings.ReplaceAll(result, "{{date}}", now.Format("1/2/2006"))
	result = strings.ReplaceAll(result, "{{time}}", now.Format("3:04:05 PM"))
	return result
}

// NotificationHTML renders the fixed owner-notification layout: form id,
// submission time, and a field table in stable order. Values are escaped.
func NotificationHTML(formID string, formData map[string]any, now time.Time) string {
	keys := make([]string, 0, len(formData))
	for key := range formData {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var rows strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&rows, `<tr>
<td style="padding: 8px; border: 1px solid #ddd; font-weight: bold;">%s</td>
<td style="padding: 8px; border: 1px solid #ddd;">%s</td>
</tr>
`, html.EscapeString(key), html.EscapeString(fmt.Sprintf("%v", formData[key])))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>New Form Submission</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h1 style="color: #2563eb; border-bottom: 2px solid #2563eb; padding-bottom: 10px;">NEW FORM SUBMISSION NOTIFICATION</h1>
<div style="background-color: #f3f4f6; padding: 15px; border-radius: 5px; margin: 20px 0;">
<p style="margin: 0;"><strong>Form ID:</strong> %s</p>
<p style="margin: 5px 0 0 0;"><strong>Submitted at:</strong> %s</p>
</div>
<h2 style="color: #1f2937; margin-top: 30px;">Submission Details:</h2>
<table style="width: 100%%; border-collapse: collapse; margin-top: 15px;">
%s</table>
<div style="margin-top: 30px; padding-top: 20px; border-top: 1px solid #e5e7eb; font-size: 12px; color: #6b7280;">
<p>This is an automated notification from your form submission system.</p>
</div>
</div>
</body>
</html>`, html.EscapeString(formID), now.Format("1/2/2006, 3:04:05 PM"), rows.String())
}
