package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// DefaultRedisPrefix namespaces every key the broker writes.
const DefaultRedisPrefix = "deskpilot"

// Key layout per queue, with the queue name as hash tag so one queue's keys
// share a cluster slot:
//
//	{prefix}:{queue}:seq        INCR counter for FIFO tie-breaks
//	{prefix}:{queue}:job:<id>   job JSON
//	{prefix}:{queue}:wait       ZSET score=priority member=<seq>:<id>
//	{prefix}:{queue}:delayed    ZSET score=available-at ms member=<seq>:<id>
//	{prefix}:{queue}:prio       HASH member -> priority for delayed members
//	{prefix}:{queue}:active     ZSET score=lease-expiry ms member=<id>
//	{prefix}:{queue}:lease      HASH id -> lease token
//	{prefix}:{queue}:completed  ZSET score=finished ms member=<id>
//	{prefix}:{queue}:failed     ZSET score=finished ms member=<id>
type redisKeys struct {
	seq, jobPrefix, wait, delayed, prio, active, lease, completed, failed string
}

func newRedisKeys(prefix, queue string) redisKeys {
	base := fmt.Sprintf("%s:{%s}:", prefix, queue)
	return redisKeys{
		seq:       base + "seq",
		jobPrefix: base + "job:",
		wait:      base + "wait",
		delayed:   base + "delayed",
		prio:      base + "prio",
		active:    base + "active",
		lease:     base + "lease",
		completed: base + "completed",
		failed:    base + "failed",
	}
}

func (k redisKeys) job(id string) string { return k.jobPrefix + id }

// waitMember encodes seq so equal priorities pop in enqueue order.
func waitMember(seq int64, id string) string {
	return fmt.Sprintf("%020d:%s", seq, id)
}

// leaseScript promotes due delayed jobs, marking them waiting, and pops the
// first waiting job into the active set under a new lease token.
var leaseScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, m in ipairs(due) do
  local p = redis.call('HGET', KEYS[5], m) or '0'
  redis.call('ZADD', KEYS[1], p, m)
  redis.call('HDEL', KEYS[5], m)
  redis.call('ZREM', KEYS[2], m)
  local jk = ARGV[4] .. string.sub(m, 22)
  local raw = redis.call('GET', jk)
  if raw then
    local promoted = string.gsub(raw, '"state":"delayed"', '"state":"waiting"', 1)
    redis.call('SET', jk, promoted)
  end
end
local popped = redis.call('ZPOPMIN', KEYS[1])
if #popped == 0 then
  return false
end
local id = string.sub(popped[1], 22)
redis.call('ZADD', KEYS[3], ARGV[2], id)
redis.call('HSET', KEYS[4], id, ARGV[3])
return id
`)

var renewScript = redis.NewScript(`
if redis.call('HGET', KEYS[2], ARGV[1]) ~= ARGV[2] then
  return 0
end
redis.call('ZADD', KEYS[1], 'XX', ARGV[3], ARGV[1])
return 1
`)

// settleScript releases a lease held under ARGV[2] and files the job into the
// set for its new state, trimming terminal sets to ARGV[7] members.
var settleScript = redis.NewScript(`
if redis.call('HGET', KEYS[2], ARGV[1]) ~= ARGV[2] then
  return 0
end
redis.call('HDEL', KEYS[2], ARGV[1])
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('SET', KEYS[7], ARGV[4])
local state = ARGV[3]
if state == 'waiting' then
  redis.call('ZADD', KEYS[3], ARGV[5], ARGV[6])
elseif state == 'delayed' then
  redis.call('HSET', KEYS[8], ARGV[6], ARGV[9])
  redis.call('ZADD', KEYS[4], ARGV[5], ARGV[6])
else
  local set = KEYS[5]
  if state == 'failed' then
    set = KEYS[6]
  end
  redis.call('ZADD', set, ARGV[5], ARGV[1])
  local keep = tonumber(ARGV[7])
  local n = redis.call('ZCARD', set)
  if n > keep then
    local evicted = redis.call('ZRANGE', set, 0, n - keep - 1)
    for _, id in ipairs(evicted) do
      redis.call('DEL', ARGV[8] .. id)
    end
    redis.call('ZREMRANGEBYRANK', set, 0, n - keep - 1)
  end
end
return 1
`)

// reclaimScript rotates the token of every lease that expired before ARGV[1].
var reclaimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
for _, id in ipairs(ids) do
  redis.call('HSET', KEYS[2], id, ARGV[2] .. id)
end
return ids
`)

// cleanScript drops terminal jobs finished before ARGV[1].
var cleanScript = redis.NewScript(`
local removed = 0
for i = 1, 2 do
  local ids = redis.call('ZRANGEBYSCORE', KEYS[i], '-inf', '(' .. ARGV[1])
  for _, id in ipairs(ids) do
    redis.call('DEL', ARGV[2] .. id)
    redis.call('ZREM', KEYS[i], id)
    removed = removed + 1
  end
end
return removed
`)

// RedisOptions configure the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisBroker is a Broker backed by Redis sorted sets. Multiple scheduler
// processes may share one Redis; leases make delivery at-least-once.
type RedisBroker struct {
	client *redis.Client
	prefix string
}

// NewRedisBroker connects to Redis.
func NewRedisBroker(opts RedisOptions) *RedisBroker {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisBrokerWithClient(rdb, opts.Prefix)
}

// NewRedisBrokerWithClient wraps an existing client.
func NewRedisBrokerWithClient(client *redis.Client, prefix string) *RedisBroker {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBroker{client: client, prefix: prefix}
}

// Name implements Broker.
func (r *RedisBroker) Name() string { return "redis" }

// Ping implements Broker.
func (r *RedisBroker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Enqueue implements Broker.
func (r *RedisBroker) Enqueue(ctx context.Context, job *Job) error {
	if job.State != StateWaiting && job.State != StateDelayed {
		return fmt.Errorf("enqueue %s: invalid state %q", job.ID, job.State)
	}

	keys := newRedisKeys(r.prefix, job.Queue)
	seq, err := r.client.Incr(ctx, keys.seq).Result()
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", job.ID, err)
	}
	job.Seq = seq

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}

	member := waitMember(seq, job.ID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keys.job(job.ID), data, 0)
		if job.State == StateWaiting {
			pipe.ZAdd(ctx, keys.wait, &redis.Z{Score: float64(job.Priority), Member: member})
		} else {
			pipe.HSet(ctx, keys.prio, member, job.Priority)
			pipe.ZAdd(ctx, keys.delayed, &redis.Z{Score: float64(job.AvailableAt.UnixMilli()), Member: member})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", job.ID, err)
	}
	return nil
}

// Lease implements Broker.
func (r *RedisBroker) Lease(ctx context.Context, queue string, now time.Time, ttl time.Duration) (*Job, error) {
	keys := newRedisKeys(r.prefix, queue)
	token := uuid.NewString()
	expires := now.Add(ttl)

	id, err := leaseScript.Run(ctx, r.client,
		[]string{keys.wait, keys.delayed, keys.active, keys.lease, keys.prio},
		now.UnixMilli(), expires.UnixMilli(), token, keys.jobPrefix,
	).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lease from %s: %w", queue, err)
	}

	job, err := r.Get(ctx, queue, id)
	if err != nil {
		return nil, err
	}
	job.State = StateActive
	job.ProcessedAt = now
	job.LeaseToken = token
	job.LeaseExpiresAt = expires
	if err := r.store(ctx, keys, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Renew implements Broker.
func (r *RedisBroker) Renew(ctx context.Context, queue, id, token string, until time.Time) error {
	keys := newRedisKeys(r.prefix, queue)
	ok, err := renewScript.Run(ctx, r.client,
		[]string{keys.active, keys.lease},
		id, token, until.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("renew %s: %w", id, err)
	}
	if ok == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Settle implements Broker.
func (r *RedisBroker) Settle(ctx context.Context, job *Job, token string, keep int) error {
	keys := newRedisKeys(r.prefix, job.Queue)

	stored := job.Clone()
	stored.LeaseToken = ""
	stored.LeaseExpiresAt = time.Time{}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}

	var score float64
	switch stored.State {
	case StateWaiting:
		score = float64(stored.Priority)
	case StateDelayed:
		score = float64(stored.AvailableAt.UnixMilli())
	case StateCompleted, StateFailed:
		score = float64(stored.FinishedAt.UnixMilli())
	default:
		return fmt.Errorf("settle %s: invalid state %q", job.ID, job.State)
	}
	if keep < 0 {
		keep = 0
	}

	ok, err := settleScript.Run(ctx, r.client,
		[]string{
			keys.active, keys.lease, keys.wait, keys.delayed,
			keys.completed, keys.failed, keys.job(job.ID), keys.prio,
		},
		job.ID, token, string(stored.State), data,
		strconv.FormatFloat(score, 'f', -1, 64), waitMember(stored.Seq, job.ID),
		keep, keys.jobPrefix, stored.Priority,
	).Int()
	if err != nil {
		return fmt.Errorf("settle %s: %w", job.ID, err)
	}
	if ok == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Reclaim implements Broker.
func (r *RedisBroker) Reclaim(ctx context.Context, queue string, now time.Time) ([]*Job, error) {
	keys := newRedisKeys(r.prefix, queue)
	tokenPrefix := uuid.NewString() + ":"

	ids, err := reclaimScript.Run(ctx, r.client,
		[]string{keys.active, keys.lease},
		now.UnixMilli(), tokenPrefix,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("reclaim %s: %w", queue, err)
	}

	out := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := r.Get(ctx, queue, id)
		if errors.Is(err, ErrJobNotFound) {
			continue
		}
		if err != nil {
			return out, err
		}
		job.LeaseToken = tokenPrefix + id
		out = append(out, job)
	}
	return out, nil
}

// Get implements Broker.
func (r *RedisBroker) Get(ctx context.Context, queue, id string) (*Job, error) {
	data, err := r.client.Get(ctx, newRedisKeys(r.prefix, queue).job(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (r *RedisBroker) store(ctx context.Context, keys redisKeys, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	if err := r.client.Set(ctx, keys.job(job.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("store job %s: %w", job.ID, err)
	}
	return nil
}

// Counts implements Broker.
func (r *RedisBroker) Counts(ctx context.Context, queue string) (Counts, error) {
	keys := newRedisKeys(r.prefix, queue)

	var cmds [5]*redis.IntCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		cmds[0] = pipe.ZCard(ctx, keys.wait)
		cmds[1] = pipe.ZCard(ctx, keys.delayed)
		cmds[2] = pipe.ZCard(ctx, keys.active)
		cmds[3] = pipe.ZCard(ctx, keys.completed)
		cmds[4] = pipe.ZCard(ctx, keys.failed)
		return nil
	})
	if err != nil {
		return Counts{}, fmt.Errorf("count %s: %w", queue, err)
	}
	return Counts{
		Waiting:   cmds[0].Val(),
		Delayed:   cmds[1].Val(),
		Active:    cmds[2].Val(),
		Completed: cmds[3].Val(),
		Failed:    cmds[4].Val(),
	}, nil
}

// Clean implements Broker.
func (r *RedisBroker) Clean(ctx context.Context, queue string, cutoff time.Time) (int, error) {
	keys := newRedisKeys(r.prefix, queue)
	n, err := cleanScript.Run(ctx, r.client,
		[]string{keys.completed, keys.failed},
		cutoff.UnixMilli(), keys.jobPrefix,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("clean %s: %w", queue, err)
	}
	return n, nil
}

// Close implements Broker.
func (r *RedisBroker) Close() error {
	return r.client.Close()
}
