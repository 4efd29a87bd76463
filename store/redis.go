package store

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// The redis store implements the ResultStore interface using Redis as the
// backend. Records are kept per execution in a Redis list, so step order
// survives the round trip. The keys namespace is organized as follows:
// - `/<prefix>/resultstore/<executionID>/records` for the ordered step outputs

const (
	// maxRecords caps the list length per execution.
	maxRecords = 200
	// recordTTL expires abandoned executions.
	recordTTL = 24 * time.Hour
)

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a Redis-backed ResultStore under the key prefix.
func NewRedisStore(client *redis.Client, prefix string) ResultStore {
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

func (m *redisStore) getRedisRecordsKey(executionID string) string {
	return path.Join(m.prefix, "resultstore", executionID, "records")
}

func (m *redisStore) Append(ctx context.Context, executionID string, rec Record) error {
	if executionID == "" {
		return errors.New("invalid execution ID")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal record")
	}

	key := m.getRedisRecordsKey(executionID)
	pipe := m.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -maxRecords, -1)
	pipe.Expire(ctx, key, recordTTL)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to store record in Redis")
	}
	return nil
}

func (m *redisStore) Records(ctx context.Context, executionID string) ([]Record, error) {
	if executionID == "" {
		return nil, errors.New("invalid execution ID")
	}
	key := m.getRedisRecordsKey(executionID)
	data, err := m.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read records from Redis")
	}

	var recs []Record
	for _, item := range data {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			logger.ContextKV(ctx, xlog.ERROR, "reason", "unmarshal record", "err", err.Error())
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (m *redisStore) Reset(ctx context.Context, executionID string) error {
	if executionID == "" {
		return errors.New("invalid execution ID")
	}
	err := m.client.Del(ctx, m.getRedisRecordsKey(executionID)).Err()
	if err != nil {
		return errors.Wrap(err, "failed to reset records in Redis")
	}
	return nil
}
