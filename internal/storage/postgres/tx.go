package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/argom2011/TangoWEB/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txKey struct{}

// withTx runs fn inside a transaction, joining one already carried by ctx.
// The transaction is rolled back if fn fails or panics.
func withTx(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	if tx := txFromContext(ctx); tx != nil {
		return fn(ctx, tx)
	}

	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return translateError("begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.Background())
			panic(p)
		}
	}()

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx, tx); err != nil {
		_ = tx.Rollback(context.Background())
		return translateError("tx", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return translateError("commit", err)
	}
	return nil
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// ParseIsolation maps a configured isolation level name to pgx's.
func ParseIsolation(name string) (pgx.TxIsoLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "read committed", "read_committed":
		return pgx.ReadCommitted, nil
	case "repeatable read", "repeatable_read":
		return pgx.RepeatableRead, nil
	case "serializable":
		return pgx.Serializable, nil
	default:
		return "", fmt.Errorf("unknown isolation level %q", name)
	}
}

// translateError maps Postgres failures that a retry can resolve onto
// domain.ErrConcurrencyConflict.
func translateError(op string, err error) error {
	if err == nil || errors.Is(err, domain.ErrConcurrencyConflict) {
		return err
	}
	if isSerializationFailure(err) || isDeadlock(err) || isLockNotAvailable(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConcurrencyConflict, err)
	}
	if op == "tx" {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isSerializationFailure(err error) bool { return pgCode(err) == "40001" }

func isDeadlock(err error) bool { return pgCode(err) == "40P01" }

func isLockNotAvailable(err error) bool { return pgCode(err) == "55P03" }

func isUniqueViolation(err error) bool { return pgCode(err) == "23505" }

func isCheckViolation(err error) bool { return pgCode(err) == "23514" }

func isInvalidText(err error) bool { return pgCode(err) == "22P02" }
