package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ordermail/internal/domain/notification"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const tableName = "delivery_logs"

var _ notification.LogStore = (*SupabaseStore)(nil)

// SupabaseStore implements LogStore using the Supabase Go SDK.
type SupabaseStore struct {
	client *supa.Client
}

// NewSupabaseStore creates a new Supabase-backed delivery log store.
func NewSupabaseStore(supabaseURL, serviceKey string) (*SupabaseStore, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// supabaseRow is the PostgREST representation of a delivery log.
type supabaseRow struct {
	ID                string          `json:"id,omitempty"`
	IdempotencyKey    *string         `json:"idempotency_key,omitempty"`
	Kind              string          `json:"kind"`
	Recipient         string          `json:"recipient"`
	OrderNumber       string          `json:"order_number"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	ProviderMessageID *string         `json:"provider_message_id,omitempty"`
	Status            string          `json:"status"`
	Attempts          int             `json:"attempts"`
	ErrorMessage      *string         `json:"error_message,omitempty"`
	CreatedAt         string          `json:"created_at,omitempty"`
	UpdatedAt         string          `json:"updated_at,omitempty"`
	SentAt            *string         `json:"sent_at,omitempty"`
}

// Create inserts a new delivery log and fills in the generated fields.
func (s *SupabaseStore) Create(ctx context.Context, log *notification.DeliveryLog) error {
	row := logToRow(log)

	data, _, err := s.client.From(tableName).Insert(row, false, "", "representation", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting delivery log: %w", err)
	}

	var results []supabaseRow
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("parsing insert response: %w", err)
	}

	if len(results) > 0 {
		created := rowToLog(&results[0])
		log.ID = created.ID
		log.CreatedAt = created.CreatedAt
		log.UpdatedAt = created.UpdatedAt
	}
	return nil
}

// GetByID retrieves a delivery log by its ID. Returns nil, nil if no record is found.
func (s *SupabaseStore) GetByID(ctx context.Context, id string) (*notification.DeliveryLog, error) {
	return s.getOne("id", id)
}

// GetByIdempotencyKey retrieves a delivery log by its idempotency key.
// Returns nil, nil if no record is found.
func (s *SupabaseStore) GetByIdempotencyKey(ctx context.Context, key string) (*notification.DeliveryLog, error) {
	return s.getOne("idempotency_key", key)
}

func (s *SupabaseStore) getOne(column, value string) (*notification.DeliveryLog, error) {
	data, _, err := s.client.From(tableName).
		Select("*", "", false).
		Eq(column, value).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching delivery log by %s: %w", column, err)
	}

	var rows []supabaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing delivery log: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToLog(&rows[0]), nil
}

// Update writes a state change to an existing log.
func (s *SupabaseStore) Update(ctx context.Context, id string, u notification.LogUpdate) error {
	_, _, err := s.client.From(tableName).Update(updateFields(u, time.Now()), "", "").Eq("id", id).Execute()
	if err != nil {
		return fmt.Errorf("updating delivery log: %w", err)
	}
	return nil
}

// updateFields builds the PATCH body for u. Zero attempts and empty strings
// leave the stored values untouched; a successful send clears the error.
func updateFields(u notification.LogUpdate, now time.Time) map[string]any {
	ts := now.UTC().Format(time.RFC3339Nano)
	update := map[string]any{
		"status":     string(u.Status),
		"updated_at": ts,
	}
	if u.Attempts > 0 {
		update["attempts"] = u.Attempts
	}
	if u.ProviderMessageID != "" {
		update["provider_message_id"] = u.ProviderMessageID
	}
	if u.ErrorMessage != "" {
		update["error_message"] = u.ErrorMessage
	}

	switch u.Status {
	case notification.StatusSent, notification.StatusSimulated:
		update["sent_at"] = ts
		update["error_message"] = nil
	}
	return update
}

// List retrieves delivery logs with pagination and filtering, newest first.
func (s *SupabaseStore) List(ctx context.Context, filter notification.ListFilter) ([]*notification.DeliveryLog, int, error) {
	filter = filter.Normalize()
	offset := (filter.Page - 1) * filter.PageSize

	query := s.client.From(tableName).Select("*", "exact", false)

	if filter.Status != "" {
		query = query.Eq("status", filter.Status)
	}
	if filter.Recipient != "" {
		query = query.Eq("recipient", filter.Recipient)
	}
	if filter.Kind != "" {
		query = query.Eq("kind", filter.Kind)
	}
	if filter.OrderNumber != "" {
		query = query.Eq("order_number", filter.OrderNumber)
	}

	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: false})
	query = query.Range(offset, offset+filter.PageSize-1, "")

	data, count, err := query.Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("listing delivery logs: %w", err)
	}

	logs, err := parseRows(data)
	if err != nil {
		return nil, 0, err
	}
	return logs, int(count), nil
}

// ListStale retrieves logs stuck in queued/processing since before olderThan.
func (s *SupabaseStore) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*notification.DeliveryLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := s.client.From(tableName).
		Select("*", "", false).
		In("status", []string{string(notification.StatusQueued), string(notification.StatusProcessing)}).
		Lt("updated_at", olderThan.UTC().Format(time.RFC3339Nano)).
		Order("updated_at", &postgrest.OrderOpts{Ascending: true}).
		Range(0, limit-1, "")

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("listing stale delivery logs: %w", err)
	}
	return parseRows(data)
}

func parseRows(data []byte) ([]*notification.DeliveryLog, error) {
	var rows []supabaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing delivery logs: %w", err)
	}
	logs := make([]*notification.DeliveryLog, len(rows))
	for i := range rows {
		logs[i] = rowToLog(&rows[i])
	}
	return logs, nil
}

func logToRow(log *notification.DeliveryLog) supabaseRow {
	row := supabaseRow{
		Kind:        string(log.Kind),
		Recipient:   log.Recipient,
		OrderNumber: log.OrderNumber,
		Payload:     log.Payload,
		Status:      string(log.Status),
		Attempts:    log.Attempts,
	}
	if log.IdempotencyKey != "" {
		row.IdempotencyKey = &log.IdempotencyKey
	}
	if log.ProviderMessageID != "" {
		row.ProviderMessageID = &log.ProviderMessageID
	}
	if log.ErrorMessage != "" {
		row.ErrorMessage = &log.ErrorMessage
	}
	if log.SentAt != nil {
		ts := log.SentAt.UTC().Format(time.RFC3339Nano)
		row.SentAt = &ts
	}
	return row
}

// rowToLog converts a supabaseRow to a DeliveryLog.
func rowToLog(row *supabaseRow) *notification.DeliveryLog {
	log := &notification.DeliveryLog{
		ID:          row.ID,
		Kind:        notification.Kind(row.Kind),
		Recipient:   row.Recipient,
		OrderNumber: row.OrderNumber,
		Payload:     row.Payload,
		Status:      notification.LogStatus(row.Status),
		Attempts:    row.Attempts,
		CreatedAt:   parseTime(row.CreatedAt),
		UpdatedAt:   parseTime(row.UpdatedAt),
	}
	if row.IdempotencyKey != nil {
		log.IdempotencyKey = *row.IdempotencyKey
	}
	if row.ProviderMessageID != nil {
		log.ProviderMessageID = *row.ProviderMessageID
	}
	if row.ErrorMessage != nil {
		log.ErrorMessage = *row.ErrorMessage
	}
	if row.SentAt != nil {
		if t := parseTime(*row.SentAt); !t.IsZero() {
			log.SentAt = &t
		}
	}
	return log
}

// parseTime accepts PostgREST timestamps with or without a zone offset.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
