package repository

import (
	"context"
	"database/sql"
	"encoding/json"
)

// querier is satisfied by both *sql.DB and *sql.Tx so that every MySQL
// repository can run on the pool or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore is the MySQL-backed Store.
type SQLStore struct {
	db *sql.DB
	sqlUnit
}

// NewSQLStore returns a Store bound to db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, sqlUnit: sqlUnit{q: db}}
}

// DB exposes the underlying pool (health checks, migrations).
func (s *SQLStore) DB() *sql.DB { return s.db }

// InTx begins a transaction bound to ctx, runs fn and commits.  Any error
// from fn, or a failed commit, rolls the transaction back.
func (s *SQLStore) InTx(ctx context.Context, fn func(u Unit) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(sqlUnit{q: tx, locking: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// sqlUnit hands out repositories sharing one querier.  locking is set
// inside transactions so that *ForUpdate reads take row locks.
type sqlUnit struct {
	q       querier
	locking bool
}

func (u sqlUnit) Users() UserRepository         { return &UserRepo{q: u.q} }
func (u sqlUnit) Tokens() TokenRepository       { return &TokenRepo{q: u.q} }
func (u sqlUnit) Tours() TourRepository         { return &TourRepo{q: u.q, locking: u.locking} }
func (u sqlUnit) Bookings() BookingRepository   { return &BookingRepo{q: u.q, locking: u.locking} }
func (u sqlUnit) Payments() PaymentRepository   { return &PaymentRepo{q: u.q, locking: u.locking} }
func (u sqlUnit) Reviews() ReviewRepository     { return &ReviewRepo{q: u.q, locking: u.locking} }
func (u sqlUnit) Wishlists() WishlistRepository { return &WishlistRepo{q: u.q} }
func (u sqlUnit) Messages() MessageRepository   { return &MessageRepo{q: u.q} }

// jsonColumn encodes v for a JSON column; nil slices are stored as NULL.
func jsonColumn(v any) (any, error) {
	switch t := v.(type) {
	case []string:
		if t == nil {
			return nil, nil
		}
	case json.RawMessage:
		if len(t) == 0 {
			return nil, nil
		}
		return []byte(t), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// decodeJSON unmarshals a nullable JSON column into dst.
func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
