package metastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/danthegoodman1/icemor/crdb"
	"github.com/danthegoodman1/icemor/model"
	"github.com/danthegoodman1/icemor/utils"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

type (
	// CRDBMetaStore keeps pending compactions in the pending_compactions table
	CRDBMetaStore struct {
		pool *pgxpool.Pool
	}
)

func NewCRDBMetaStore(pool *pgxpool.Pool) *CRDBMetaStore {
	return &CRDBMetaStore{pool: pool}
}

func (cms *CRDBMetaStore) AddPendingPlan(ctx context.Context, table, instant string, ids []model.FileGroupID) error {
	if len(ids) == 0 {
		return nil
	}
	return utils.ReliableExecInTx(ctx, cms.pool, crdb.StandardContextTimeout, func(ctx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, id := range ids {
			batch.Queue(`INSERT INTO pending_compactions (table_name, partition_path, file_id, instant) VALUES ($1, $2, $3, $4)`,
				table, id.PartitionPath, id.FileID, instant)
		}
		br := tx.SendBatch(ctx, batch)
		for _, id := range ids {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return insertError(id, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("error in br.Close: %w", err)
		}
		return nil
	})
}

// insertError maps a unique violation on the pending_compactions primary key to
// ErrFileGroupPending, which is never retried.
func insertError(id model.FileGroupID, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return utils.Permanent(fmt.Errorf("%w: %s", ErrFileGroupPending, id))
	}
	return fmt.Errorf("error inserting pending compaction for %s: %w", id, err)
}

func (cms *CRDBMetaStore) ListPendingFileGroups(ctx context.Context, table string) (map[model.FileGroupID]string, error) {
	pending := make(map[model.FileGroupID]string)
	err := utils.ReliableExec(ctx, cms.pool, crdb.StandardContextTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `SELECT partition_path, file_id, instant FROM pending_compactions WHERE table_name = $1`, table)
		if err != nil {
			return fmt.Errorf("error in Query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id model.FileGroupID
			var instant string
			if err := rows.Scan(&id.PartitionPath, &id.FileID, &instant); err != nil {
				return fmt.Errorf("error in rows.Scan: %w", err)
			}
			pending[id] = instant
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (cms *CRDBMetaStore) CompletePlan(ctx context.Context, table, instant string) error {
	var deleted int64
	err := utils.ReliableExec(ctx, cms.pool, crdb.StandardContextTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `DELETE FROM pending_compactions WHERE table_name = $1 AND instant = $2`, table, instant)
		if err != nil {
			return fmt.Errorf("error in Exec: %w", err)
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s/%s", ErrPlanNotPending, table, instant)
	}
	return nil
}

func (cms *CRDBMetaStore) Shutdown(_ context.Context) error {
	logger.Debug().Msg("closing CRDB pool")
	cms.pool.Close()
	return nil
}
