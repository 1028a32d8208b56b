package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"avl-svr/internal/codec/fmxxx"
	"avl-svr/internal/observability"
	"avl-svr/internal/pipeline"
)

// trackedIO are the IO elements whose last value is kept per device and
// whose changes are counted.
var trackedIO = []uint16{
	fmxxx.Ignition,
	fmxxx.Movement,
	fmxxx.DIn1,
	fmxxx.DIn2,
	fmxxx.DIn3,
	fmxxx.DIn4,
	fmxxx.DOut1,
	fmxxx.DOut2,
	fmxxx.CrashDetect,
}

// Redis keeps the latest state of each device:
//
//	dev:<imei>:last        JSON tracking object of the newest record
//	dev:<imei>:io:<name>   last value of each tracked IO element
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(ctx context.Context, addr string, db int, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{rdb: rdb, ttl: ttl}, nil
}

func (s *Redis) Name() string { return "redis" }

func (s *Redis) Close() error { return s.rdb.Close() }

func LastKey(imei string) string { return "dev:" + imei + ":last" }

func IOKey(imei, name string) string { return "dev:" + imei + ":io:" + name }

// Publish stores the newest record of b and the tracked IO values it
// carries, counting value changes against what was stored before.
func (s *Redis) Publish(ctx context.Context, b *pipeline.Batch) error {
	latest := b.Latest()
	if latest == nil {
		return nil
	}
	imei := b.Meta.IMEI

	keys := make([]string, 0, len(trackedIO))
	for _, id := range trackedIO {
		keys = append(keys, IOKey(imei, fmxxx.NameOf(id)))
	}
	prev, err := s.GetStates(ctx, keys)
	if err != nil {
		return err
	}

	doc, err := json.Marshal(latest)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, LastKey(imei), doc, s.ttl)
	for _, c := range diffStates(imei, prev, latest.PermIO) {
		if c.changed {
			observability.IOChanges.WithLabelValues(c.name).Inc()
		}
		pipe.Set(ctx, c.key, c.value, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		observability.RedisSetErrors.Inc()
		return fmt.Errorf("redis set %s: %w", imei, err)
	}
	return nil
}

// Last returns the stored tracking object for imei, or nil if none.
func (s *Redis) Last(ctx context.Context, imei string) (*pipeline.TrackingObject, error) {
	val, err := s.rdb.Get(ctx, LastKey(imei)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tr pipeline.TrackingObject
	if err := json.Unmarshal(val, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// GetStates reads integer states with one MGET; missing keys are omitted.
func (s *Redis) GetStates(ctx context.Context, keys []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return out, fmt.Errorf("redis mget: %w", err)
	}
	return parseStates(keys, vals), nil
}

func parseStates(keys []string, vals []interface{}) map[string]uint64 {
	out := make(map[string]uint64, len(keys))
	for i, v := range vals {
		if v == nil || i >= len(keys) {
			continue
		}
		str, _ := v.(string)
		n, err := strconv.ParseUint(str, 10, 64)
		if err != nil {
			continue
		}
		out[keys[i]] = n
	}
	return out
}

type stateChange struct {
	name    string
	key     string
	value   uint64
	changed bool
}

// diffStates lists the tracked IO values present in perm; changed is set
// when a previous value exists and differs.
func diffStates(imei string, prev map[string]uint64, perm map[string]uint64) []stateChange {
	var out []stateChange
	for _, id := range trackedIO {
		name := fmxxx.NameOf(id)
		v, ok := perm[name]
		if !ok {
			continue
		}
		key := IOKey(imei, name)
		old, had := prev[key]
		out = append(out, stateChange{name: name, key: key, value: v, changed: had && old != v})
	}
	return out
}
