package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UltimateTournament/backoff/v4"
	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgx"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

// ReliableExec acquires a connection and runs f, retrying with exponential backoff
// until f succeeds, returns a permanent error, or maxTimeout passes.
func ReliableExec(ctx context.Context, pool *pgxpool.Pool, maxTimeout time.Duration, f func(ctx context.Context, conn *pgxpool.Conn) error) error {
	cfg := backoff.NewExponentialBackOff()
	cfg.MaxElapsedTime = maxTimeout

	return backoff.RetryNotify(func() error {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("error in pool.Acquire: %w", err)
		}
		defer conn.Release()

		err = f(ctx, conn)
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(cfg, ctx), func(err error, d time.Duration) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("backoff", d.String()).Msg("retrying ReliableExec")
	})
}

// ReliableExecInTx is ReliableExec inside a transaction, with crdb handling the
// serialization retry loop.
func ReliableExecInTx(ctx context.Context, pool *pgxpool.Pool, maxTimeout time.Duration, f func(ctx context.Context, tx pgx.Tx) error) error {
	return ReliableExec(ctx, pool, maxTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		return crdbpgx.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
			return f(ctx, tx)
		})
	})
}

func isRetryable(err error) bool {
	if IsPermanent(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 40 is transaction rollback, 08 is connection exception
		return pgErr.Code[:2] == "40" || pgErr.Code[:2] == "08"
	}
	return true
}
