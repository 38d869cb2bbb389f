package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"restaurant-pos/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS order_documents (
    branch_id  TEXT    NOT NULL,
    collection TEXT    NOT NULL,
    position   INTEGER NOT NULL,
    order_id   TEXT    NOT NULL,
    created_at DATETIME NOT NULL,
    document   TEXT    NOT NULL,
    PRIMARY KEY (branch_id, collection, position)
)`

type documentRow struct {
	Document string `db:"document"`
}

// SQLiteStore keeps order documents in an embedded SQLite file
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLite opens path with the pure-Go driver. ":memory:" is allowed;
// the pool is pinned to one connection so every query sees the same database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1)
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an open handle and creates the schema
func NewSQLiteStore(db *sqlx.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, errors.Wrap(err, "create sqlite schema")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) List(ctx context.Context, branch string, coll Collection) ([]models.Order, error) {
	var rows []documentRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT document FROM order_documents WHERE branch_id = ? AND collection = ? ORDER BY position`,
		branch, string(coll))
	if err != nil {
		return nil, errors.Wrapf(err, "select %s/%s", branch, coll)
	}

	orders := make([]models.Order, 0, len(rows))
	for _, r := range rows {
		var o models.Order
		if err := json.Unmarshal([]byte(r.Document), &o); err != nil {
			return nil, errors.Wrap(err, "decode order document")
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (s *SQLiteStore) Replace(ctx context.Context, branch string, writes ...Write) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, w := range writes {
		if !validCollection(w.Collection) {
			return errors.Errorf("unknown collection %q", w.Collection)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM order_documents WHERE branch_id = ? AND collection = ?`,
			branch, string(w.Collection)); err != nil {
			return errors.Wrapf(err, "clear %s/%s", branch, w.Collection)
		}
		for i, o := range w.Orders {
			doc, err := json.Marshal(o)
			if err != nil {
				return errors.Wrapf(err, "encode order %s", o.ID)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO order_documents (branch_id, collection, position, order_id, created_at, document) VALUES (?, ?, ?, ?, ?, ?)`,
				branch, string(w.Collection), i, o.ID, o.CreatedAt.UTC().Format(time.RFC3339Nano), string(doc)); err != nil {
				return errors.Wrapf(err, "insert order %s", o.ID)
			}
		}
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
