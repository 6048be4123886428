package surrealdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/interfaces"
	"github.com/bobmcallan/intellivest/internal/storage/notify"
)

// document is the stored row. The value is kept as a JSON string so SurrealDB
// does not reinterpret numbers or timestamps inside it.
type document struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store implements interfaces.DocumentStore on a SurrealDB table. Change
// notification is in-process: subscribers see writes made through this Store.
type Store struct {
	db       *surrealdb.DB
	logger   *common.Logger
	notifier *notify.Notifier
	owned    bool
}

// NewStore connects using config and returns a Store that closes the
// connection on Close.
func NewStore(ctx context.Context, logger *common.Logger, config common.StorageConfig) (*Store, error) {
	db, err := Connect(ctx, logger, config)
	if err != nil {
		return nil, err
	}
	s := NewStoreWithDB(db, logger)
	s.owned = true
	return s, nil
}

// NewStoreWithDB wraps an already connected database. The caller keeps
// ownership of db.
func NewStoreWithDB(db *surrealdb.DB, logger *common.Logger) *Store {
	return &Store{
		db:       db,
		logger:   logger,
		notifier: notify.New(),
	}
}

func (s *Store) Read(ctx context.Context, key string) (json.RawMessage, bool, error) {
	doc, err := surrealdb.Select[document](ctx, s.db, surrealmodels.NewRecordID(DocumentTable, key))
	if err != nil {
		if isNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to select document %s: %w", key, err)
	}
	if doc == nil || doc.Value == "" {
		return nil, false, nil
	}
	return json.RawMessage(doc.Value), true, nil
}

func (s *Store) Write(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return errors.New("document value is not valid JSON")
	}
	doc := document{Key: key, Value: string(value), UpdatedAt: time.Now().UTC()}

	sql := "UPSERT type::record('document', $id) CONTENT $doc"
	vars := map[string]any{"id": key, "doc": doc}

	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		if _, err = surrealdb.Query[[]document](ctx, s.db, sql, vars); err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		s.logger.Debug().Err(err).Str("key", key).Int("attempt", attempt).Msg("Document write failed")
	}
	if err != nil {
		return fmt.Errorf("failed to save document %s after retries: %w", key, err)
	}

	s.notifier.Notify(key, value)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	deleted, err := surrealdb.Delete[document](ctx, s.db, surrealmodels.NewRecordID(DocumentTable, key))
	if err != nil {
		if isNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("failed to delete document %s: %w", key, err)
	}
	// Deleting an absent record returns no row.
	if deleted != nil && deleted.Key != "" {
		s.notifier.Notify(key, nil)
	}
	return nil
}

func (s *Store) Subscribe(key string, fn interfaces.ChangeFunc) func() {
	return s.notifier.Subscribe(key, fn)
}

func (s *Store) Close() error {
	if s.owned && s.db != nil {
		return s.db.Close(context.Background())
	}
	return nil
}

// Ensure Store implements DocumentStore
var _ interfaces.DocumentStore = (*Store)(nil)
