package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"command-pipeline/internal/common/database"
	"command-pipeline/internal/models"
)

// Store persists audit records. Implementations are append-only.
type Store interface {
	Write(ctx context.Context, rec models.AuditRecord) error
	Ping(ctx context.Context) error
}

// SQLStore appends to the audit_records table.
type SQLStore struct {
	db *database.SQLClient
}

func NewSQLStore(db *database.SQLClient) *SQLStore {
	return &SQLStore{db: db}
}

const insertAuditSQL = `INSERT INTO audit_records
	(id, request_id, channel, actor, intent, brain, command_snapshot, external_result_snapshot, status, error_message, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLStore) Write(ctx context.Context, rec models.AuditRecord) error {
	_, err := s.db.Exec(ctx, insertAuditSQL,
		rec.ID,
		rec.RequestID,
		string(rec.Channel),
		rec.Actor,
		string(rec.Intent),
		string(rec.Brain),
		nullableJSON(rec.CommandSnapshot),
		nullableJSON(rec.ExternalResultSnapshot),
		string(rec.Status),
		rec.ErrorMessage,
		rec.Timestamp.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("audit insert failed: %w", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// IndexMapping is applied when the audit index is first created.
const IndexMapping = `{
  "mappings": {
    "properties": {
      "id":                     {"type": "keyword"},
      "requestId":              {"type": "keyword"},
      "channel":                {"type": "keyword"},
      "actor":                  {"type": "keyword"},
      "intent":                 {"type": "keyword"},
      "brain":                  {"type": "keyword"},
      "status":                 {"type": "keyword"},
      "errorMessage":           {"type": "text"},
      "timestamp":              {"type": "date"},
      "commandSnapshot":        {"type": "object", "enabled": false},
      "externalResultSnapshot": {"type": "object", "enabled": false}
    }
  }
}`

// ElasticsearchStore indexes each record with op_type=create so an id can
// never be overwritten.
type ElasticsearchStore struct {
	es    *database.ElasticsearchClient
	index string
}

func NewElasticsearchStore(es *database.ElasticsearchClient, index string) *ElasticsearchStore {
	return &ElasticsearchStore{es: es, index: index}
}

func (s *ElasticsearchStore) Write(ctx context.Context, rec models.AuditRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	client := s.es.Client
	res, err := client.Index(
		s.index,
		bytes.NewReader(body),
		client.Index.WithContext(ctx),
		client.Index.WithDocumentID(rec.ID),
		client.Index.WithOpType("create"),
	)
	if err != nil {
		return fmt.Errorf("audit index failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("audit index error: %s: %s", res.Status(), string(msg))
	}
	return nil
}

func (s *ElasticsearchStore) Ping(ctx context.Context) error {
	return s.es.Ping(ctx)
}
