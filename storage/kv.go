package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the KV bucket statements are kept in.
const DefaultBucket = "SEMRES_STATEMENTS"

// maxUpdateAttempts bounds the optimistic read-modify-write loop on one key.
const maxUpdateAttempts = 5

// KVStore is a Store backed by a NATS JetStream KV bucket. Each subject owns one
// key whose value is the JSON encoded list of its statements.
type KVStore struct {
	kv jetstream.KeyValue
}

// NewKVStore opens the named bucket, creating it if it doesn't exist.
func NewKVStore(ctx context.Context, js jetstream.JetStream, bucket string) (*KVStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		return nil, fmt.Errorf("create statements bucket: %w", err)
	}
	return &KVStore{kv: kv}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Semres %s storage", strings.ToLower(name)),
		History:     5, // Keep last 5 revisions
	})
}

func subjectKey(subject string) string {
	return "s." + base64.RawURLEncoding.EncodeToString([]byte(subject))
}

// Match implements Store.
func (s *KVStore) Match(ctx context.Context, p Pattern) ([]Statement, error) {
	if p.Subject != "" {
		stmts, _, err := s.read(ctx, subjectKey(p.Subject))
		if err != nil {
			return nil, err
		}
		return filter(stmts, p), nil
	}

	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}

	var out []Statement
	for _, key := range keys {
		stmts, _, err := s.read(ctx, key)
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

// Add implements Store.
func (s *KVStore) Add(ctx context.Context, stmts ...Statement) error {
	bySubject := make(map[string][]Statement)
	var order []string
	for _, st := range stmts {
		if err := st.Validate(); err != nil {
			return err
		}
		if _, ok := bySubject[st.Subject]; !ok {
			order = append(order, st.Subject)
		}
		bySubject[st.Subject] = append(bySubject[st.Subject], st)
	}

	for _, subject := range order {
		added := bySubject[subject]
		err := s.modify(ctx, subjectKey(subject), func(existing []Statement) []Statement {
			return dedupe(append(existing, added...))
		})
		if err != nil {
			return fmt.Errorf("store statements of %s: %w", subject, err)
		}
	}
	return nil
}

// RemoveMatching implements Store.
func (s *KVStore) RemoveMatching(ctx context.Context, p Pattern) (int, error) {
	var keys []string
	if p.Subject != "" {
		keys = []string{subjectKey(p.Subject)}
	} else {
		var err error
		if keys, err = s.keys(ctx); err != nil {
			return 0, err
		}
	}

	removed := 0
	for _, key := range keys {
		n := 0
		err := s.modify(ctx, key, func(existing []Statement) []Statement {
			kept := existing[:0:0]
			n = 0
			for _, st := range existing {
				if p.Matches(st) {
					n++
					continue
				}
				kept = append(kept, st)
			}
			return kept
		})
		if err != nil {
			return removed, fmt.Errorf("remove statements: %w", err)
		}
		removed += n
	}
	return removed, nil
}

// Close implements Store. The NATS connection is owned by the caller.
func (s *KVStore) Close() error {
	return nil
}

func (s *KVStore) keys(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list statement keys: %w", err)
	}
	return keys, nil
}

// read returns the statements under key and the entry revision. A missing key
// yields no statements and revision zero.
func (s *KVStore) read(ctx context.Context, key string) ([]Statement, uint64, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("get %s: %w", key, err)
	}

	var stmts []Statement
	if err := json.Unmarshal(entry.Value(), &stmts); err != nil {
		return nil, 0, fmt.Errorf("unmarshal statements: %w", err)
	}
	return stmts, entry.Revision(), nil
}

// modify applies fn to the statements under key using optimistic concurrency on
// the entry revision. An empty result deletes the key.
func (s *KVStore) modify(ctx context.Context, key string, fn func([]Statement) []Statement) error {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		existing, rev, err := s.read(ctx, key)
		if err != nil {
			return err
		}

		updated := fn(existing)
		if len(updated) == len(existing) && sameStatements(updated, existing) {
			return nil
		}

		if len(updated) == 0 {
			err = s.kv.Delete(ctx, key, jetstream.LastRevision(rev))
		} else {
			data, merr := json.Marshal(updated)
			if merr != nil {
				return fmt.Errorf("marshal statements: %w", merr)
			}
			if rev == 0 {
				_, err = s.kv.Create(ctx, key, data)
			} else {
				_, err = s.kv.Update(ctx, key, data, rev)
			}
		}
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return err
		}
	}
	return fmt.Errorf("update %s: too many concurrent modifications", key)
}

func sameStatements(a, b []Statement) bool {
	for i := range a {
		if a[i].Key() != b[i].Key() {
			return false
		}
	}
	return true
}

func filter(stmts []Statement, p Pattern) []Statement {
	var out []Statement
	for _, st := range stmts {
		if !p.Matches(st) {
			continue
		}
		out = append(out, st)
		if p.limitReached(len(out)) {
			break
		}
	}
	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}

// isConflict reports whether a write lost an optimistic concurrency race.
func isConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}
	return false
}
