package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/throwingafit/storefront/internal/schema"
)

// submissions.go persists public form submissions. Tables with a registered
// schema store each field in its declared column, plus a uniqueness_check
// identifier for deduplication and email delivery flags, so the admin table
// views read the same columns the form wrote. Tables without a schema fall
// back to a raw shape with the payload as JSON.

// CheckDuplicate reports whether a submission with the same identifier has
// already been stored for this form's table.
func (st *Store) CheckDuplicate(ctx context.Context, tableName, identifier string) (bool, error) {
	var exists bool
	err := st.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE uniqueness_check = $1)", quoteIdentifier(tableName)),
		identifier,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate submission in %s: %w", tableName, err)
	}
	return exists, nil
}

// InsertSubmission stores a new submission with the email flags unset. The
// returned id identifies the row for later status updates.
func (st *Store) InsertSubmission(ctx context.Context, tableName, identifier string, formData map[string]any) (string, error) {
	s, ok := schema.Get(tableName)
	if !ok {
		return st.insertRawSubmission(ctx, tableName, identifier, formData)
	}

	sql, args := insertQuery(s, submissionRow(s, identifier, formData))
	row, err := st.queryOne(ctx, s, sql, args)
	if err != nil {
		return "", fmt.Errorf("insert submission into %s: %w", tableName, err)
	}
	return fmt.Sprintf("%v", row["id"]), nil
}

// submissionRow maps a submission onto the table's declared columns:
// schema fields take their submitted values and the bookkeeping columns
// start with the dedup key and unsent email flags. Undeclared payload keys
// never reach SQL.
func submissionRow(s *schema.FormSchema, identifier string, formData map[string]any) map[string]any {
	now := time.Now().UTC()
	row := make(map[string]any, len(formData)+5)
	for name, value := range formData {
		if _, declared := s.Properties[name]; declared {
			row[name] = value
		}
	}
	row["uniqueness_check"] = identifier
	row["notification_email_sent"] = false
	row["reply_email_sent"] = false
	if _, ok := s.Properties["id"]; ok {
		row["id"] = uuid.NewString()
	}
	if _, ok := s.Properties["created_at"]; ok {
		row["created_at"] = now
	}
	if _, ok := s.Properties["updated_at"]; ok {
		row["updated_at"] = now
	}
	return row
}

// insertRawSubmission keeps the full payload as JSON for tables that have
// no registered schema.
func (st *Store) insertRawSubmission(ctx context.Context, tableName, identifier string, formData map[string]any) (string, error) {
	payload, err := json.Marshal(formData)
	if err != nil {
		return "", fmt.Errorf("encode submission payload: %w", err)
	}

	now := time.Now().UTC()
	var id string
	err = st.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s
			(id, uniqueness_check, form_data, notification_email_sent, reply_email_sent, created_at, updated_at)
			VALUES (gen_random_uuid(), $1, $2, false, false, $3, $3)
			RETURNING id`, quoteIdentifier(tableName)),
		identifier, payload, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert submission into %s: %w", tableName, err)
	}
	return id, nil
}

// MarkEmailStatus records which emails were delivered for a submission.
func (st *Store) MarkEmailStatus(ctx context.Context, tableName, id string, notificationSent, replySent bool) error {
	now := time.Now().UTC()
	tag, err := st.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s
			SET notification_email_sent = $1, reply_email_sent = $2, email_sent_at = $3, updated_at = $3
			WHERE id = $4`, quoteIdentifier(tableName)),
		notificationSent, replySent, now, id,
	)
	if err != nil {
		return fmt.Errorf("update submission email status in %s: %w", tableName, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission %s in %s: %w", id, tableName, ErrNotFound)
	}
	return nil
}
