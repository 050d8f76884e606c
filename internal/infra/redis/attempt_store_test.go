package redis

import (
	"context"
	"testing"
	"time"

	"cbt-exam-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*AttemptStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewAttemptStore(client), mr
}

func TestAttemptStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	if err := store.SaveAnswers(ctx, "u1", "t1", map[string]int{"q1": 2, "q2": 0}); err != nil {
		t.Fatalf("save answers: %v", err)
	}
	if !mr.Exists("test_u1_t1_answers") {
		t.Fatalf("expected answers key to be set")
	}
	answers, err := store.LoadAnswers(ctx, "u1", "t1")
	if err != nil {
		t.Fatalf("load answers: %v", err)
	}
	if len(answers) != 2 || answers["q1"] != 2 || answers["q2"] != 0 {
		t.Fatalf("round trip mismatch: %v", answers)
	}

	if err := store.SaveFlags(ctx, "u1", "t1", []string{"q1"}); err != nil {
		t.Fatalf("save flags: %v", err)
	}
	flags, err := store.LoadFlags(ctx, "u1", "t1")
	if err != nil || len(flags) != 1 || flags[0] != "q1" {
		t.Fatalf("flags round trip: %v err=%v", flags, err)
	}
}

func TestResultRoundTripsExactly(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	record := domain.ResultRecord{
		TestID:         "t1",
		Score:          75,
		Passed:         true,
		TotalQuestions: 4,
		CorrectAnswers: 3,
		TimeTaken:      1320,
		CompletedAt:    time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
		Answers:        map[string]int{"q1": 0, "q2": 1, "q3": 2, "q4": 0},
	}
	if err := store.SaveResult(ctx, "u1", "t1", record); err != nil {
		t.Fatalf("save result: %v", err)
	}

	loaded, ok, err := store.LoadResult(ctx, "u1", "t1")
	if err != nil || !ok {
		t.Fatalf("load result: ok=%v err=%v", ok, err)
	}
	if loaded.Score != record.Score || loaded.Passed != record.Passed ||
		loaded.TimeTaken != record.TimeTaken || !loaded.CompletedAt.Equal(record.CompletedAt) {
		t.Fatalf("result mismatch: %+v vs %+v", loaded, record)
	}
	if len(loaded.Answers) != 4 || loaded.Answers["q3"] != 2 {
		t.Fatalf("answers snapshot mismatch: %v", loaded.Answers)
	}
}

func TestCorruptPayloadsReadAsAbsent(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	if err := mr.Set("test_u1_t1_answers", "{not json"); err != nil {
		t.Fatalf("seed corrupt: %v", err)
	}
	if err := mr.Set("test_u1_t1_results", "also not json"); err != nil {
		t.Fatalf("seed corrupt: %v", err)
	}

	answers, err := store.LoadAnswers(ctx, "u1", "t1")
	if err != nil || len(answers) != 0 {
		t.Fatalf("corrupt answers must read as empty, got %v err=%v", answers, err)
	}
	_, ok, err := store.LoadResult(ctx, "u1", "t1")
	if err != nil || ok {
		t.Fatalf("corrupt result must read as absent, ok=%v err=%v", ok, err)
	}
}

func TestClearAttemptDeletesAllKeys(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	_ = store.SaveAnswers(ctx, "u1", "t1", map[string]int{"q1": 1})
	_ = store.SaveFlags(ctx, "u1", "t1", []string{"q1"})
	_ = store.SaveResult(ctx, "u1", "t1", domain.ResultRecord{TestID: "t1", CompletedAt: time.Now()})

	if err := store.ClearAttempt(ctx, "u1", "t1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for _, key := range []string{"test_u1_t1_answers", "test_u1_t1_flagged", "test_u1_t1_results"} {
		if mr.Exists(key) {
			t.Fatalf("expected %s to be deleted", key)
		}
	}
}
