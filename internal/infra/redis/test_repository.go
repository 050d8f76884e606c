package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"cbt-exam-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// TestLoader fetches test definitions from a backing store (e.g., Postgres).
type TestLoader interface {
	LoadTest(ctx context.Context, testID string) (domain.Test, error)
	ListTests(ctx context.Context) ([]domain.Test, error)
}

// TestRepository caches test definitions in Redis as JSON blobs and falls
// back to a loader on cache miss.
// Definitions are stored as: SET cbt:test:{testID} {json}
// The catalog is stored as:  SET cbt:tests {json array}
type TestRepository struct {
	client *redis.Client
	loader TestLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewTestRepository(client *redis.Client, loader TestLoader, ttl time.Duration) *TestRepository {
	return &TestRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *TestRepository) GetTest(ctx context.Context, testID string) (domain.Test, error) {
	key := r.testKey(testID)

	if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var test domain.Test
		if err := json.Unmarshal(raw, &test); err == nil {
			return test, nil
		}
	}

	result, err, _ := r.sf.Do(testID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
			var test domain.Test
			if err := json.Unmarshal(raw, &test); err == nil {
				return test, nil
			}
		}

		test, err := r.loader.LoadTest(ctx, testID)
		if err != nil {
			return domain.Test{}, err
		}
		r.fill(ctx, key, test)
		return test, nil
	})
	if err != nil {
		return domain.Test{}, err
	}
	return result.(domain.Test), nil
}

func (r *TestRepository) ListTests(ctx context.Context) ([]domain.Test, error) {
	if raw, err := r.client.Get(ctx, r.catalogKey()).Bytes(); err == nil {
		var tests []domain.Test
		if err := json.Unmarshal(raw, &tests); err == nil {
			return tests, nil
		}
	}

	result, err, _ := r.sf.Do("catalog", func() (interface{}, error) {
		if raw, err := r.client.Get(ctx, r.catalogKey()).Bytes(); err == nil {
			var tests []domain.Test
			if err := json.Unmarshal(raw, &tests); err == nil {
				return tests, nil
			}
		}

		tests, err := r.loader.ListTests(ctx)
		if err != nil {
			return nil, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		if raw, err := json.Marshal(tests); err == nil {
			pipe.Set(ctx, r.catalogKey(), raw, ttl)
		}
		for _, test := range tests {
			if raw, err := json.Marshal(test); err == nil {
				pipe.Set(ctx, r.testKey(test.ID), raw, ttl)
			}
		}
		_, _ = pipe.Exec(ctx)

		return tests, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Test), nil
}

// fill is a best-effort cache write; a miss next time just reloads.
func (r *TestRepository) fill(ctx context.Context, key string, test domain.Test) {
	raw, err := json.Marshal(test)
	if err != nil {
		return
	}
	_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
}

func (r *TestRepository) testKey(testID string) string {
	return fmt.Sprintf("cbt:test:%s", testID)
}

func (r *TestRepository) catalogKey() string {
	return "cbt:tests"
}

func (r *TestRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
