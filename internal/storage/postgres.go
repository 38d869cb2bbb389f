package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"restaurant-pos/internal/database"
	"restaurant-pos/internal/models"
)

// documentDB is the slice of *database.DB the document store runs on
type documentDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Close()
}

var _ documentDB = (*database.DB)(nil)

// PostgresStore keeps each order as a JSONB document row
type PostgresStore struct {
	db documentDB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) List(ctx context.Context, branch string, coll Collection) ([]models.Order, error) {
	rows, err := s.db.Query(ctx, database.SelectOrderDocumentsSQL, branch, string(coll))
	if err != nil {
		return nil, errors.Wrapf(err, "query %s/%s", branch, coll)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, errors.Wrap(err, "scan order document")
		}
		var o models.Order
		if err := json.Unmarshal(doc, &o); err != nil {
			return nil, errors.Wrap(err, "decode order document")
		}
		orders = append(orders, o)
	}
	return orders, errors.Wrap(rows.Err(), "iterate order documents")
}

// Replace rewrites every collection in one transaction
func (s *PostgresStore) Replace(ctx context.Context, branch string, writes ...Write) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, w := range writes {
		if !validCollection(w.Collection) {
			return errors.Errorf("unknown collection %q", w.Collection)
		}
		batch.Queue(database.DeleteOrderDocumentsSQL, branch, string(w.Collection))
		for i, o := range w.Orders {
			doc, err := json.Marshal(o)
			if err != nil {
				return errors.Wrapf(err, "encode order %s", o.ID)
			}
			batch.Queue(database.InsertOrderDocumentSQL, branch, string(w.Collection), i, o.ID, o.CreatedAt, string(doc))
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrapf(err, "replace %s collections", branch)
	}
	return errors.Wrap(tx.Commit(ctx), "commit transaction")
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
