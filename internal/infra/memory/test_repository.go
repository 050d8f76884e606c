package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"cbt-exam-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// TestLoader fetches test definitions from a backing store (e.g., Postgres).
type TestLoader interface {
	LoadTest(ctx context.Context, testID string) (domain.Test, error)
	ListTests(ctx context.Context) ([]domain.Test, error)
}

// TestRepository caches test definitions with TTL to avoid repeated DB hits.
type TestRepository struct {
	loader TestLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu      sync.RWMutex
	cache   map[string]cachedTest
	catalog *cachedCatalog
}

type cachedTest struct {
	test      domain.Test
	expiresAt time.Time
}

type cachedCatalog struct {
	tests     []domain.Test
	expiresAt time.Time
}

func NewTestRepository(loader TestLoader, ttl time.Duration) *TestRepository {
	return &TestRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedTest),
	}
}

func (r *TestRepository) GetTest(ctx context.Context, testID string) (domain.Test, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[testID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.test, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(testID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[testID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.test, nil
		}
		r.mu.RUnlock()

		test, err := r.loader.LoadTest(ctx, testID)
		if err != nil {
			return domain.Test{}, err
		}

		r.mu.Lock()
		r.cache[testID] = cachedTest{test: test, expiresAt: now.Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return test, nil
	})
	if err != nil {
		return domain.Test{}, err
	}
	return result.(domain.Test), nil
}

func (r *TestRepository) ListTests(ctx context.Context) ([]domain.Test, error) {
	now := r.clock()

	r.mu.RLock()
	if r.catalog != nil && r.catalog.expiresAt.After(now) {
		tests := r.catalog.tests
		r.mu.RUnlock()
		return tests, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("catalog", func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if r.catalog != nil && r.catalog.expiresAt.After(now) {
			tests := r.catalog.tests
			r.mu.RUnlock()
			return tests, nil
		}
		r.mu.RUnlock()

		tests, err := r.loader.ListTests(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.catalog = &cachedCatalog{tests: tests, expiresAt: now.Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return tests, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Test), nil
}

func (r *TestRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticTestLoader is a simple loader backed by an in-memory catalog (useful
// for tests/demos and the no-database deployment mode).
type StaticTestLoader struct {
	order []string
	tests map[string]domain.Test
}

func NewStaticTestLoader(tests []domain.Test) *StaticTestLoader {
	loader := &StaticTestLoader{tests: make(map[string]domain.Test, len(tests))}
	for _, test := range tests {
		loader.order = append(loader.order, test.ID)
		loader.tests[test.ID] = test
	}
	return loader
}

func (l *StaticTestLoader) LoadTest(_ context.Context, testID string) (domain.Test, error) {
	if test, ok := l.tests[testID]; ok {
		return test, nil
	}
	return domain.Test{}, domain.ErrTestNotFound
}

func (l *StaticTestLoader) ListTests(_ context.Context) ([]domain.Test, error) {
	out := make([]domain.Test, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.tests[id])
	}
	return out, nil
}
