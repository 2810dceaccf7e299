package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"pet-custody/internal/domain/custody"
)

var _ custody.Store = (*Store)(nil)

// Store implementa custody.Store sobre database/sql + pgx.
//
// WithinTx corre en READ COMMITTED y cada Get* hace SELECT ... FOR UPDATE:
// el chequeo de estado y el UPDATE quedan serializados por fila.
// Las invariantes de unicidad las garantizan los índices únicos parciales.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type tx struct {
	q    querier
	lock bool
}

var _ custody.Tx = (*tx)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(tx custody.Tx) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, true, fn)
}

func (s *Store) View(ctx context.Context, fn func(tx custody.Tx) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true}, false, fn)
}

func (s *Store) run(ctx context.Context, opts *sql.TxOptions, write bool, fn func(tx custody.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	// mapErr también en el borde: un deadlock o una falla de serialización
	// puede aparecer en cualquier sentencia o en el commit y se informa como conflicto.
	if err := fn(&tx{q: sqlTx, lock: write}); err != nil {
		err = mapErr(err)
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if !write {
		return sqlTx.Rollback()
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapErr(err))
	}
	return nil
}

// forUpdate agrega el lock de fila solo en transacciones de escritura.
func (t *tx) forUpdate() string {
	if t.lock {
		return " FOR UPDATE"
	}
	return ""
}

// insert ejecuta un INSERT ... ON CONFLICT DO NOTHING. Sin filas afectadas
// significa que un índice único rechazó la fila: no aborta la transacción.
func (t *tx) insert(ctx context.Context, query string, args ...any) error {
	res, err := t.q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return custody.ErrDuplicate
	}
	return nil
}

// update falla con ErrNotFound si no tocó ninguna fila.
func (t *tx) update(ctx context.Context, query string, args ...any) error {
	res, err := t.q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return custody.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func itoa(n int) string { return strconv.Itoa(n) }
