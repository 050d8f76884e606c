package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"cbt-exam-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AttemptStore persists attempt state (answers, flags, result) as JSON values
// under per-(user, test) keys. Every save is a full overwrite so the latest
// write always wins; a payload that no longer parses is treated as absent
// rather than surfacing an error, which gives the user a fresh start instead
// of a crash.
type AttemptStore struct {
	client *redis.Client
}

func NewAttemptStore(client *redis.Client) *AttemptStore {
	return &AttemptStore{client: client}
}

func (s *AttemptStore) LoadAnswers(ctx context.Context, userKey, testID string) (map[string]int, error) {
	raw, ok, err := s.load(ctx, s.answersKey(userKey, testID))
	if err != nil || !ok {
		return map[string]int{}, err
	}
	var answers map[string]int
	if err := json.Unmarshal(raw, &answers); err != nil || answers == nil {
		logCorrupt(s.answersKey(userKey, testID), err)
		return map[string]int{}, nil
	}
	return answers, nil
}

func (s *AttemptStore) SaveAnswers(ctx context.Context, userKey, testID string, answers map[string]int) error {
	return s.save(ctx, s.answersKey(userKey, testID), answers)
}

func (s *AttemptStore) LoadFlags(ctx context.Context, userKey, testID string) ([]string, error) {
	raw, ok, err := s.load(ctx, s.flagsKey(userKey, testID))
	if err != nil || !ok {
		return nil, err
	}
	var flags []string
	if err := json.Unmarshal(raw, &flags); err != nil {
		logCorrupt(s.flagsKey(userKey, testID), err)
		return nil, nil
	}
	return flags, nil
}

func (s *AttemptStore) LoadResult(ctx context.Context, userKey, testID string) (domain.ResultRecord, bool, error) {
	raw, ok, err := s.load(ctx, s.resultKey(userKey, testID))
	if err != nil || !ok {
		return domain.ResultRecord{}, false, err
	}
	var record domain.ResultRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		logCorrupt(s.resultKey(userKey, testID), err)
		return domain.ResultRecord{}, false, nil
	}
	return record, true, nil
}

func (s *AttemptStore) SaveFlags(ctx context.Context, userKey, testID string, flags []string) error {
	return s.save(ctx, s.flagsKey(userKey, testID), flags)
}

func (s *AttemptStore) SaveResult(ctx context.Context, userKey, testID string, record domain.ResultRecord) error {
	return s.save(ctx, s.resultKey(userKey, testID), record)
}

// ClearAttempt removes all three records in a single DEL so no partial
// attempt state is ever observable afterwards.
func (s *AttemptStore) ClearAttempt(ctx context.Context, userKey, testID string) error {
	err := s.client.Del(ctx,
		s.answersKey(userKey, testID),
		s.flagsKey(userKey, testID),
		s.resultKey(userKey, testID),
	).Err()
	if err != nil {
		return fmt.Errorf("clear attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) load(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	return raw, true, nil
}

func (s *AttemptStore) save(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func logCorrupt(key string, err error) {
	log.Printf("discarding corrupt payload at %s: %v", key, err)
}

func (s *AttemptStore) answersKey(userKey, testID string) string {
	return "test_" + userKey + "_" + testID + "_answers"
}

func (s *AttemptStore) flagsKey(userKey, testID string) string {
	return "test_" + userKey + "_" + testID + "_flagged"
}

func (s *AttemptStore) resultKey(userKey, testID string) string {
	return "test_" + userKey + "_" + testID + "_results"
}
