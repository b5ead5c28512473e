package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/doeshing/riskgate/internal/ports"
)

// RedisStore keeps one hash per descriptor and per family, plus a set
// indexing each kind so List does not need SCAN.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a store backed by Redis.
func NewRedis(addr, password string, db int, prefix string) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisWithClient(rdb, prefix)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "riskgate"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) descriptorKey(command string) string {
	return fmt.Sprintf("%s:descriptor:%s", s.prefix, command)
}

func (s *RedisStore) familyKey(family string) string {
	return fmt.Sprintf("%s:family:%s", s.prefix, family)
}

func (s *RedisStore) descriptorIndex() string { return s.prefix + ":descriptors" }
func (s *RedisStore) familyIndex() string     { return s.prefix + ":families" }

func (s *RedisStore) Put(ctx context.Context, d ports.StoredDescriptor) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := s.descriptorKey(d.Command)
		pipe.HSet(ctx, key, map[string]interface{}{
			"family":       d.Family,
			"tool_version": d.ToolVersion,
			"record":       d.Record,
			"updated_at":   d.UpdatedAt.UnixNano(),
		})
		if len(d.Audit) > 0 {
			pipe.HSet(ctx, key, "audit", d.Audit)
		} else {
			pipe.HDel(ctx, key, "audit")
		}
		pipe.SAdd(ctx, s.descriptorIndex(), d.Command)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist descriptor %s: %w", d.Command, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, command string) (ports.StoredDescriptor, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.descriptorKey(command)).Result()
	if err != nil {
		return ports.StoredDescriptor{}, false, fmt.Errorf("failed to get descriptor %s: %w", command, err)
	}
	if len(fields) == 0 {
		return ports.StoredDescriptor{}, false, nil
	}
	d := ports.StoredDescriptor{
		Command:     command,
		Family:      fields["family"],
		ToolVersion: fields["tool_version"],
		Record:      []byte(fields["record"]),
		UpdatedAt:   parseNanos(fields["updated_at"]),
	}
	if a, ok := fields["audit"]; ok {
		d.Audit = []byte(a)
	}
	return d, true, nil
}

func (s *RedisStore) List(ctx context.Context) ([]ports.StoredDescriptor, error) {
	names, err := s.client.SMembers(ctx, s.descriptorIndex()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list descriptors: %w", err)
	}
	sort.Strings(names)
	out := make([]ports.StoredDescriptor, 0, len(names))
	for _, name := range names {
		d, ok, err := s.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, command string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.descriptorKey(command))
		pipe.SRem(ctx, s.descriptorIndex(), command)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete descriptor %s: %w", command, err)
	}
	return nil
}

func (s *RedisStore) PutFamily(ctx context.Context, f ports.StoredFamily) error {
	body, err := encodeFamilyBody(f.Members, f.Deltas)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.familyKey(f.Family), map[string]interface{}{
			"parent":     f.Parent,
			"body":       body,
			"updated_at": f.UpdatedAt.UnixNano(),
		})
		pipe.SAdd(ctx, s.familyIndex(), f.Family)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist family %s: %w", f.Family, err)
	}
	return nil
}

func (s *RedisStore) GetFamily(ctx context.Context, family string) (ports.StoredFamily, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.familyKey(family)).Result()
	if err != nil {
		return ports.StoredFamily{}, false, fmt.Errorf("failed to get family %s: %w", family, err)
	}
	if len(fields) == 0 {
		return ports.StoredFamily{}, false, nil
	}
	members, deltas, err := decodeFamilyBody([]byte(fields["body"]))
	if err != nil {
		return ports.StoredFamily{}, false, fmt.Errorf("family %s: %w", family, err)
	}
	return ports.StoredFamily{
		Family:    family,
		Parent:    []byte(fields["parent"]),
		Members:   members,
		Deltas:    deltas,
		UpdatedAt: parseNanos(fields["updated_at"]),
	}, true, nil
}

func (s *RedisStore) ListFamilies(ctx context.Context) ([]ports.StoredFamily, error) {
	names, err := s.client.SMembers(ctx, s.familyIndex()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}
	sort.Strings(names)
	out := make([]ports.StoredFamily, 0, len(names))
	for _, name := range names {
		f, ok, err := s.GetFamily(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	err := s.client.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

func parseNanos(v string) time.Time {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

var _ ports.Store = (*RedisStore)(nil)
