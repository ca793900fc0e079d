// Package postgres implements the repository interfaces on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of *pgxpool.Pool the stores use. pgxmock.PgxPoolIface
// satisfies it too.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// inTx runs fn inside a transaction, committing when fn returns nil.
func inTx(ctx context.Context, pool PgxPool, fn func(tx pgx.Tx) error) (err error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()
	return fn(tx)
}

func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}

// accessFilter is the read predicate compiled into SQL. $1 is the viewer.
const accessFilter = `(
		(m.message_type = 'group' AND EXISTS (
			SELECT 1 FROM group_members gm
			WHERE gm.group_id = m.group_id AND gm.user_id = $1))
		OR (m.message_type = 'private' AND (m.sender_id = $1 OR m.recipient_id = $1))
	)`
