package metastore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danthegoodman1/icemor/model"
	"github.com/danthegoodman1/icemor/utils"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

type (
	// RedisMetaStore keeps one hash per table, field "{partition}\x00{fileId}" -> instant
	RedisMetaStore struct {
		client *redis.Client
	}
)

const (
	fieldSep = "\x00"

	// maxWatchAttempts bounds retries when another writer touches the table hash mid transaction
	maxWatchAttempts = 5
)

func NewRedisMetaStore(ctx context.Context) (*RedisMetaStore, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Msg("connecting to redis metastore")
	rms := &RedisMetaStore{
		client: redis.NewClient(&redis.Options{
			Addr:        utils.REDIS_ADDR,
			Password:    utils.REDIS_PASSWORD,
			DB:          0,
			DialTimeout: time.Second * 3,
		}),
	}

	// Ping test first to ensure valid connection
	if os.Getenv("REDIS_PING_TEST") == "1" {
		logger.Debug().Msg("running redis ping test")
		s := time.Now()
		_, err := rms.client.Ping(ctx).Result()
		if err != nil {
			rms.client.Close()
			return nil, fmt.Errorf("error pinging redis: %w", err)
		}
		logger.Debug().Msgf("redis ping test successful in %s", time.Since(s))
	}

	return rms, nil
}

func (rms *RedisMetaStore) PendingKey(table string) string {
	return "t_" + table + "_pending_compactions"
}

func encodeField(id model.FileGroupID) string {
	return id.PartitionPath + fieldSep + id.FileID
}

func decodeField(field string) (model.FileGroupID, error) {
	partitionPath, fileID, found := strings.Cut(field, fieldSep)
	if !found {
		return model.FileGroupID{}, fmt.Errorf("malformed pending field %q", field)
	}
	return model.NewFileGroupID(partitionPath, fileID), nil
}

func (rms *RedisMetaStore) AddPendingPlan(ctx context.Context, table, instant string, ids []model.FileGroupID) error {
	if len(ids) == 0 {
		return nil
	}
	logger := zerolog.Ctx(ctx)
	key := rms.PendingKey(table)
	fields := make([]string, len(ids))
	for i, id := range ids {
		fields[i] = encodeField(id)
	}

	// WATCH makes the existence check and the write atomic
	txf := func(tx *redis.Tx) error {
		existing, err := tx.HMGet(ctx, key, fields...).Result()
		if err != nil {
			return fmt.Errorf("error in redis HMGET: %w", err)
		}
		if err = pendingConflict(ids, existing); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			values := make([]any, 0, len(fields)*2)
			for _, f := range fields {
				values = append(values, f, instant)
			}
			pipe.HSet(ctx, key, values...)
			return nil
		})
		return err
	}
	err := retryOnTxFailed(maxWatchAttempts, func() error {
		return rms.client.Watch(ctx, txf, key)
	})
	if err != nil {
		return fmt.Errorf("error adding pending plan: %w", err)
	}
	logger.Debug().Str("table", table).Str("instant", instant).Int("fileGroups", len(ids)).Msg("recorded pending compaction")
	return nil
}

func (rms *RedisMetaStore) ListPendingFileGroups(ctx context.Context, table string) (map[model.FileGroupID]string, error) {
	logger := zerolog.Ctx(ctx)

	var cursorPos uint64 = 0
	var returnedCursor uint64 = 1
	pending := make(map[model.FileGroupID]string)

	// Loop until we have all the results
	for returnedCursor != 0 {
		logger.Debug().Msgf("running redis HSCAN with cursor %d", cursorPos)
		kvs, newCursor, err := rms.client.HScan(ctx, rms.PendingKey(table), cursorPos, "", 0).Result()
		if err != nil {
			return nil, fmt.Errorf("error in redis HSCAN: %w", err)
		}
		// HSCAN returns field, value, field, value...
		for i := 0; i+1 < len(kvs); i += 2 {
			id, err := decodeField(kvs[i])
			if err != nil {
				return nil, err
			}
			pending[id] = kvs[i+1]
		}

		returnedCursor = newCursor
		cursorPos = newCursor
	}

	return pending, nil
}

func (rms *RedisMetaStore) CompletePlan(ctx context.Context, table, instant string) error {
	pending, err := rms.ListPendingFileGroups(ctx, table)
	if err != nil {
		return err
	}
	var fields []string
	for id, inst := range pending {
		if inst == instant {
			fields = append(fields, encodeField(id))
		}
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: %s/%s", ErrPlanNotPending, table, instant)
	}
	if _, err = rms.client.HDel(ctx, rms.PendingKey(table), fields...).Result(); err != nil {
		return fmt.Errorf("error in redis HDEL: %w", err)
	}
	return nil
}

func (rms *RedisMetaStore) Shutdown(_ context.Context) error {
	err := rms.client.Close()
	if err != nil {
		return fmt.Errorf("error closing redis client: %w", err)
	}
	return nil
}

// pendingConflict reports the first id that already has a pending instant.
// existing is the HMGET reply for ids, in order.
func pendingConflict(ids []model.FileGroupID, existing []any) error {
	for i, v := range existing {
		if v != nil {
			return fmt.Errorf("%w: %s at %v", ErrFileGroupPending, ids[i], v)
		}
	}
	return nil
}

// retryOnTxFailed runs f until it returns something other than
// redis.TxFailedErr, at most attempts times.
func retryOnTxFailed(attempts int, f func() error) (err error) {
	for i := 0; i < attempts; i++ {
		if err = f(); !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}
