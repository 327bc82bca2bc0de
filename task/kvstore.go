package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// KVRegistry is a Registry backed by Redis: one hash per task, one TTL
// per hash enforcing expiry without a separate sweep. Single-flight
// create relies on HSETNX against the hash's "id" field, which Redis
// guarantees is atomic even under concurrent callers racing the same id.
type KVRegistry struct {
	client    *redis.Client
	keyPrefix string
}

// NewKVRegistry wraps an already-configured *redis.Client. keyPrefix
// namespaces every task key (e.g. "survey_task:").
func NewKVRegistry(client *redis.Client, keyPrefix string) *KVRegistry {
	if keyPrefix == "" {
		keyPrefix = "survey_task:"
	}
	return &KVRegistry{client: client, keyPrefix: keyPrefix}
}

func (r *KVRegistry) key(id string) string { return r.keyPrefix + id }

func (r *KVRegistry) Create(ctx context.Context, id string, params map[string]any, topic string, ttl time.Duration) (*Record, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("task: marshal params: %w", err)
	}
	now := time.Now().UTC()
	key := r.key(id)

	ok, err := r.client.HSetNX(ctx, key, "id", id).Result()
	if err != nil {
		return nil, fmt.Errorf("task: create %s: %w", id, err)
	}
	if !ok {
		return nil, ErrTaskExists
	}

	fields := map[string]any{
		"status":     string(StatusPending),
		"params":     string(paramsJSON),
		"topic":      topic,
		"created_at": now.Format(time.RFC3339Nano),
		"updated_at": now.Format(time.RFC3339Nano),
	}
	if ttl > 0 {
		fields["expires_at"] = now.Add(ttl).Format(time.RFC3339Nano)
	}
	if err := r.client.HSet(ctx, key, fields).Err(); err != nil {
		return nil, fmt.Errorf("task: create %s: %w", id, err)
	}
	if ttl > 0 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			return nil, fmt.Errorf("task: create %s: set ttl: %w", id, err)
		}
	}
	return r.Get(ctx, id)
}

func (r *KVRegistry) Get(ctx context.Context, id string) (*Record, error) {
	vals, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("task: get %s: %w", id, err)
	}
	if len(vals) == 0 {
		return nil, ErrTaskNotFound
	}
	return recordFromMap(id, vals)
}

func (r *KVRegistry) UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error {
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(current.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}
	now := time.Now().UTC()
	fields := map[string]any{
		"status":     string(status),
		"updated_at": now.Format(time.RFC3339Nano),
	}
	if errMsg != "" {
		fields["error_message"] = errMsg
	}
	if status == StatusPreparing {
		fields["started_at"] = now.Format(time.RFC3339Nano)
	}
	if status.IsTerminal() {
		fields["ended_at"] = now.Format(time.RFC3339Nano)
		if !current.StartedAt.IsZero() {
			fields["execution_seconds"] = strconv.FormatFloat(now.Sub(current.StartedAt).Seconds(), 'f', -1, 64)
		}
	}
	return r.client.HSet(ctx, r.key(id), fields).Err()
}

func (r *KVRegistry) UpdateField(ctx context.Context, id string, field string, value any) error {
	if err := r.client.HSet(ctx, r.key(id), field, fmt.Sprintf("%v", value)).Err(); err != nil {
		return fmt.Errorf("task: update field %s.%s: %w", id, field, err)
	}
	return r.client.HSet(ctx, r.key(id), "updated_at", time.Now().UTC().Format(time.RFC3339Nano)).Err()
}

func (r *KVRegistry) List(ctx context.Context, status Status, limit int) ([]*Record, error) {
	var out []*Record
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if limit > 0 && len(out) >= limit {
			break
		}
		id := iter.Val()[len(r.keyPrefix):]
		rec, err := r.Get(ctx, id)
		if err != nil {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}
	return out, iter.Err()
}

func (r *KVRegistry) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

func (r *KVRegistry) ActiveCount(ctx context.Context) (int, error) {
	all, err := r.List(ctx, "", 0)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, rec := range all {
		if !rec.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

// CleanupExpired is a no-op for KVRegistry: Redis TTLs already evict
// expired hashes on their own, so there is nothing left to sweep.
func (r *KVRegistry) CleanupExpired(ctx context.Context) (int, error) {
	return 0, nil
}

func (r *KVRegistry) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func recordFromMap(id string, vals map[string]string) (*Record, error) {
	rec := &Record{ID: id, Status: Status(vals["status"])}
	if p := vals["params"]; p != "" {
		_ = json.Unmarshal([]byte(p), &rec.Params)
	}
	rec.Topic = vals["topic"]
	rec.ResultKey = vals["result_key"]
	rec.ErrorMessage = vals["error_message"]
	rec.CreatedAt = parseTimeOrZero(vals["created_at"])
	rec.UpdatedAt = parseTimeOrZero(vals["updated_at"])
	rec.StartedAt = parseTimeOrZero(vals["started_at"])
	rec.EndedAt = parseTimeOrZero(vals["ended_at"])
	rec.ExpiresAt = parseTimeOrZero(vals["expires_at"])
	if secs, err := strconv.ParseFloat(vals["execution_seconds"], 64); err == nil {
		rec.ExecutionSeconds = secs
	}
	return rec, nil
}

func parseTimeOrZero(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
