package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// ErrRedisUnexpectedResult is returned when Redis answers with an unexpected reply type.
var ErrRedisUnexpectedResult = errors.New("redis returned unexpected result")

// RedisStore is a Store backed by Redis sets:
//
//	<prefix>:s:<subject>   set of JSON statements of the subject
//	<prefix>:subjects      set of all subjects
//	<prefix>:o:<objectKey> set of subjects referencing the object
type RedisStore struct {
	pool   *redis.Pool
	prefix string
}

// NewRedisStore creates a store talking to the Redis server at address.
func NewRedisStore(network, address, prefix string, maxActive int) *RedisStore {
	if prefix == "" {
		prefix = "semres"
	}
	if maxActive < 1 {
		maxActive = 8
	}
	return &RedisStore{
		pool: &redis.Pool{
			Dial: func() (redis.Conn, error) {
				return redis.Dial(network, address)
			},
			MaxIdle:     maxActive,
			MaxActive:   maxActive,
			Wait:        true,
			IdleTimeout: 5 * time.Minute,
		},
		prefix: prefix,
	}
}

// Ping checks connectivity.
func (s *RedisStore) Ping() error {
	conn := s.pool.Get()
	defer conn.Close()

	_, err := conn.Do("PING")
	return err
}

func (s *RedisStore) subjectSetKey(subject string) string {
	return s.prefix + ":s:" + subject
}

func (s *RedisStore) subjectsKey() string {
	return s.prefix + ":subjects"
}

func (s *RedisStore) objectKey(n Node) string {
	return s.prefix + ":o:" + n.Key()
}

// Match implements Store.
func (s *RedisStore) Match(ctx context.Context, p Pattern) ([]Statement, error) {
	conn := s.pool.Get()
	defer conn.Close()

	subjects, err := s.candidateSubjects(conn, p)
	if err != nil {
		return nil, err
	}

	var out []Statement
	for _, subject := range subjects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stmts, err := s.members(conn, subject)
		if err != nil {
			return nil, err
		}
		for _, st := range stmts {
			if !p.Matches(st) {
				continue
			}
			out = append(out, st)
			if p.limitReached(len(out)) {
				return out, nil
			}
		}
	}
	return out, nil
}

// candidateSubjects narrows the subjects to scan using the pattern.
func (s *RedisStore) candidateSubjects(conn redis.Conn, p Pattern) ([]string, error) {
	switch {
	case p.Subject != "":
		return []string{p.Subject}, nil
	case p.Object != nil:
		subjects, err := redis.Strings(conn.Do("SMEMBERS", s.objectKey(*p.Object)))
		if err != nil {
			return nil, fmt.Errorf("read object index: %w", err)
		}
		return subjects, nil
	default:
		subjects, err := redis.Strings(conn.Do("SMEMBERS", s.subjectsKey()))
		if err != nil {
			return nil, fmt.Errorf("read subjects: %w", err)
		}
		return subjects, nil
	}
}

func (s *RedisStore) members(conn redis.Conn, subject string) ([]Statement, error) {
	raw, err := redis.ByteSlices(conn.Do("SMEMBERS", s.subjectSetKey(subject)))
	if err != nil {
		return nil, fmt.Errorf("read statements of %s: %w", subject, err)
	}
	stmts := make([]Statement, 0, len(raw))
	for _, b := range raw {
		var st Statement
		if err := json.Unmarshal(b, &st); err != nil {
			return nil, fmt.Errorf("unmarshal statement: %w", err)
		}
		stmts = append(stmts, st)
	}
	return stmts, nil
}

// Add implements Store.
func (s *RedisStore) Add(_ context.Context, stmts ...Statement) error {
	for _, st := range stmts {
		if err := st.Validate(); err != nil {
			return err
		}
	}

	conn := s.pool.Get()
	defer conn.Close()

	if err := conn.Send("MULTI"); err != nil {
		return err
	}
	for _, st := range stmts {
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("marshal statement: %w", err)
		}
		_ = conn.Send("SADD", s.subjectSetKey(st.Subject), data)
		_ = conn.Send("SADD", s.subjectsKey(), st.Subject)
		_ = conn.Send("SADD", s.objectKey(st.Object), st.Subject)
	}
	result, err := conn.Do("EXEC")
	if err != nil {
		return fmt.Errorf("add statements: %w", err)
	}
	if result == nil {
		return ErrRedisUnexpectedResult
	}
	return nil
}

// RemoveMatching implements Store.
func (s *RedisStore) RemoveMatching(ctx context.Context, p Pattern) (int, error) {
	matched, err := s.Match(ctx, Pattern{Subject: p.Subject, Predicate: p.Predicate, Object: p.Object, Context: p.Context})
	if err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}

	conn := s.pool.Get()
	defer conn.Close()

	touched := make(map[string]struct{})
	for _, st := range matched {
		data, err := json.Marshal(st)
		if err != nil {
			return 0, fmt.Errorf("marshal statement: %w", err)
		}
		if _, err := conn.Do("SREM", s.subjectSetKey(st.Subject), data); err != nil {
			return 0, fmt.Errorf("remove statement: %w", err)
		}
		touched[st.Subject] = struct{}{}
	}

	// Rebuild the index entries of every subject that lost statements.
	for subject := range touched {
		remaining, err := s.members(conn, subject)
		if err != nil {
			return 0, err
		}
		if len(remaining) == 0 {
			if _, err := conn.Do("SREM", s.subjectsKey(), subject); err != nil {
				return 0, fmt.Errorf("remove subject: %w", err)
			}
		}
		still := make(map[string]struct{}, len(remaining))
		for _, st := range remaining {
			still[st.Object.Key()] = struct{}{}
		}
		for _, st := range matched {
			if st.Subject != subject {
				continue
			}
			if _, ok := still[st.Object.Key()]; ok {
				continue
			}
			if _, err := conn.Do("SREM", s.objectKey(st.Object), subject); err != nil {
				return 0, fmt.Errorf("remove object index: %w", err)
			}
		}
	}
	return len(matched), nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.pool.Close()
}
