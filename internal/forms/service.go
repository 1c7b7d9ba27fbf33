// Package forms processes public form submissions: deduplication, storage,
// and the follow-up emails each form is configured to send.
package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/throwingafit/storefront/internal/analytics"
	"github.com/throwingafit/storefront/internal/email"
)

// ErrDuplicate marks a submission whose identifier was already stored.
var ErrDuplicate = errors.New("submission already exists")

// identifierFields is the preference order for the deduplication key. When
// none is present the whole payload, canonically encoded, is the key.
var identifierFields = []string{"email", "email_address", "contact_email", "phone", "username"}

// Repository is the persistence surface the service needs.
type Repository interface {
	CheckDuplicate(ctx context.Context, table, identifier string) (bool, error)
	InsertSubmission(ctx context.Context, table, identifier string, formData map[string]any) (string, error)
	MarkEmailStatus(ctx context.Context, table, id string, notificationSent, replySent bool) error
	Create(ctx context.Context, table string, record map[string]any) (map[string]any, error)
}

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, p email.Payload) error
}

// Result is the submission outcome. Email failures do not fail the
// submission; they are reported in EmailErrors alongside Success=true.
type Result struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	EmailErrors []string `json:"emailErrors,omitempty"`
}

// Service handles form submissions end to end.
type Service struct {
	repo       Repository
	sender     Sender
	reporter   analytics.Reporter
	ownerEmail string
	projectID  string
	log        *slog.Logger
	now        func() time.Time
}

// NewService wires a submission service. ownerEmail receives notification
// emails; projectID prefixes their subject lines.
func NewService(repo Repository, sender Sender, reporter analytics.Reporter, ownerEmail, projectID string, log *slog.Logger) *Service {
	if reporter == nil {
		reporter = analytics.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:       repo,
		sender:     sender,
		reporter:   reporter,
		ownerEmail: ownerEmail,
		projectID:  projectID,
		log:        log,
		now:        time.Now,
	}
}

// Identifier derives the deduplication key for a submission: the first
// non-empty identity field, falling back to the canonical JSON encoding of
// the whole payload.
func Identifier(formData map[string]any) string {
	for _, field := range identifierFields {
		value, ok := formData[field]
		if !ok || value == nil {
			continue
		}
		str := strings.TrimSpace(fmt.Sprintf("%v", value))
		if str != "" {
			return str
		}
	}
	// encoding/json sorts map keys, so equal payloads always encode equally.
	encoded, err := json.Marshal(formData)
	if err != nil {
		return fmt.Sprintf("%v", formData)
	}
	return string(encoded)
}

// Submit stores one submission and sends the configured emails. A duplicate
// returns ErrDuplicate with a rejection Result; email failures return a
// successful Result listing what failed.
func (s *Service) Submit(ctx context.Context, formID string, formData map[string]any) (Result, error) {
	cfg, ok, err := ConfigFor(formID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		s.log.Warn("no config for form, accepting without side effects", "form_id", formID)
		return Result{Success: true, Message: "Form submitted successfully"}, nil
	}

	submissionID, err := s.persist(ctx, formID, cfg, formData)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return Result{Success: false, Message: "This submission already exists"}, err
		}
		return Result{}, err
	}

	s.reporter.FormSubmitted(formID)

	emailErrors := s.sendEmails(ctx, formID, cfg, formData)
	if submissionID != "" {
		notificationSent := cfg.SendNotificationEmail && !containsPrefix(emailErrors, "Failed to send notification")
		replySent := cfg.SendReplyEmail && !containsPrefix(emailErrors, "Failed to send reply") &&
			!containsPrefix(emailErrors, "No email address")
		if err := s.repo.MarkEmailStatus(ctx, cfg.Table, submissionID, notificationSent, replySent); err != nil {
			s.log.Error("record email status", "form_id", formID, "error", err)
		}
	}

	if len(emailErrors) > 0 {
		s.log.Error("form emails failed", "form_id", formID, "errors", emailErrors)
		return Result{
			Success:     true,
			Message:     "Form submitted but some emails failed",
			EmailErrors: emailErrors,
		}, nil
	}
	return Result{Success: true, Message: "Form submitted and emails sent successfully"}, nil
}

// persist writes the submission. Community fit uploads become structured
// rows pending approval; every other form goes through the deduplicated
// submissions path and returns the stored row id.
func (s *Service) persist(ctx context.Context, formID string, cfg Config, formData map[string]any) (string, error) {
	if formID == "community_fit_upload" {
		var imageURLs []string
		for _, key := range []string{"photoUrl", "image_url"} {
			if url, ok := formData[key].(string); ok && url != "" {
				imageURLs = []string{url}
				break
			}
		}
		record := map[string]any{
			"user_handle": formData["user_handle"],
			"image_urls":  imageURLs,
			"caption":     stringOr(formData["caption"], ""),
			"approved":    false,
			"like_count":  0,
		}
		if _, err := s.repo.Create(ctx, cfg.Table, record); err != nil {
			return "", fmt.Errorf("store community fit: %w", err)
		}
		return "", nil
	}

	identifier := Identifier(formData)
	exists, err := s.repo.CheckDuplicate(ctx, cfg.Table, identifier)
	if err != nil {
		return "", fmt.Errorf("check duplicate: %w", err)
	}
	if exists {
		return "", ErrDuplicate
	}

	id, err := s.repo.InsertSubmission(ctx, cfg.Table, identifier, formData)
	if err != nil {
		return "", fmt.Errorf("store submission: %w", err)
	}
	return id, nil
}

// sendEmails delivers the configured notification and reply messages,
// collecting failures instead of aborting.
func (s *Service) sendEmails(ctx context.Context, formID string, cfg Config, formData map[string]any) []string {
	var emailErrors []string
	now := s.now()

	if cfg.SendNotificationEmail && s.ownerEmail != "" {
		err := s.sender.Send(ctx, email.Payload{
			Receivers: s.ownerEmail,
			Title:     fmt.Sprintf("%s - NEW FORM SUBMISSION - %s", s.projectID, formID),
			BodyHTML:  email.NotificationHTML(formID, formData, now),
		})
		if err != nil {
			emailErrors = append(emailErrors, fmt.Sprintf("Failed to send notification email: %v", err))
		}
	}

	if cfg.SendReplyEmail {
		submitter, _ := formData["email"].(string)
		if submitter == "" {
			emailErrors = append(emailErrors, "No email address found in form data for reply email")
		} else {
			err := s.sender.Send(ctx, email.Payload{
				SenderName: localPart(s.ownerEmail),
				Receivers:  submitter,
				Title:      cfg.ReplySubject,
				BodyHTML:   email.RenderTemplate(cfg.ReplyTemplate, formData, now),
				ReplyTo:    cfg.ReplyTo,
			})
			if err != nil {
				emailErrors = append(emailErrors, fmt.Sprintf("Failed to send reply email: %v", err))
			}
		}
	}

	return emailErrors
}

func localPart(address string) string {
	if i := strings.Index(address, "@"); i > 0 {
		return address[:i]
	}
	return address
}

func stringOr(value any, fallback string) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fallback
}

func containsPrefix(list []string, prefix string) bool {
	for _, s := range list {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
