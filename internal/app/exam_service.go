package app

import (
	"context"
	"time"

	"cbt-exam-service/internal/domain"
)

// AttemptStore abstracts the per-(user, test) attempt persistence (in-memory,
// Redis, etc). Every save is a full overwrite and immediately durable; loads
// of corrupt or missing records report an empty value, never an error the
// user sees.
type AttemptStore interface {
	LoadAnswers(ctx context.Context, userKey, testID string) (map[string]int, error)
	SaveAnswers(ctx context.Context, userKey, testID string, answers map[string]int) error
	LoadFlags(ctx context.Context, userKey, testID string) ([]string, error)
	SaveFlags(ctx context.Context, userKey, testID string, flags []string) error
	LoadResult(ctx context.Context, userKey, testID string) (domain.ResultRecord, bool, error)
	SaveResult(ctx context.Context, userKey, testID string, record domain.ResultRecord) error
	// ClearAttempt deletes answers, flags, and result together; after it
	// returns no partial attempt state is observable.
	ClearAttempt(ctx context.Context, userKey, testID string) error
}

// TestRepository loads test definitions (from cache/backing store).
type TestRepository interface {
	GetTest(ctx context.Context, testID string) (domain.Test, error)
	ListTests(ctx context.Context) ([]domain.Test, error)
}

// ExamService contains the attempt use cases: starting and resuming sessions,
// the dashboard overview, retakes, and the certificate boundary.
type ExamService struct {
	store      AttemptStore
	tests      TestRepository
	gradeDelay time.Duration
	clock      func() time.Time

	sessions *sessionRegistry
}

// Option tweaks service construction. Tests use these for determinism.
type Option func(*ExamService)

// WithGradeDelay sets the cosmetic pause between submission and the graded
// result becoming visible. Zero grades synchronously.
func WithGradeDelay(d time.Duration) Option {
	return func(s *ExamService) { s.gradeDelay = d }
}

// WithClock injects the timestamp source for CompletedAt.
func WithClock(clock func() time.Time) Option {
	return func(s *ExamService) { s.clock = clock }
}

func NewExamService(store AttemptStore, tests TestRepository, opts ...Option) *ExamService {
	s := &ExamService{
		store:      store,
		tests:      tests,
		gradeDelay: time.Second,
		clock:      time.Now,
		sessions:   newSessionRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession begins or resumes the attempt for (identity, testID). A
// session already active for the pair is returned as-is so a reconnect picks
// up where it left off.
func (s *ExamService) StartSession(ctx context.Context, identity domain.UserIdentity, testID string) (*Session, error) {
	userKey := domain.ResolveUserKey(identity)
	if userKey == "" {
		return nil, domain.ErrNoIdentity
	}

	test, err := s.tests.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if len(test.Questions) == 0 {
		// The JSONB loaders accept whatever the bank holds; a test without
		// questions has nothing to attempt.
		return nil, domain.ErrEmptyTest
	}

	if session, ok := s.sessions.get(userKey, testID); ok {
		return session, nil
	}

	session := newSession(userKey, test, s.store, s.gradeDelay, s.clock)
	if err := session.load(ctx); err != nil {
		return nil, err
	}
	s.sessions.put(userKey, testID, session)
	return session, nil
}

// CloseSession drops the active session for the pair, cancelling any pending
// grading. Persisted answers and flags survive for a later resume.
func (s *ExamService) CloseSession(identity domain.UserIdentity, testID string) {
	userKey := domain.ResolveUserKey(identity)
	if userKey == "" {
		return
	}
	if session, ok := s.sessions.get(userKey, testID); ok {
		session.Close()
		s.sessions.remove(userKey, testID)
	}
}

// ReleaseSession drops the session once nothing is attached to it anymore.
// While other connections still subscribe it stays live with its countdown;
// the last release evicts it, so the next StartSession resumes from the
// store with a restarted countdown.
func (s *ExamService) ReleaseSession(identity domain.UserIdentity, testID string) {
	userKey := domain.ResolveUserKey(identity)
	if userKey == "" {
		return
	}
	session, ok := s.sessions.get(userKey, testID)
	if !ok {
		return
	}
	if session.idle() {
		session.Close()
		s.sessions.remove(userKey, testID)
	}
}

// Result returns the persisted outcome of a completed attempt.
func (s *ExamService) Result(ctx context.Context, identity domain.UserIdentity, testID string) (domain.ResultRecord, error) {
	userKey := domain.ResolveUserKey(identity)
	if userKey == "" {
		return domain.ResultRecord{}, domain.ErrNoIdentity
	}
	record, ok, err := s.store.LoadResult(ctx, userKey, testID)
	if err != nil {
		return domain.ResultRecord{}, err
	}
	if !ok {
		return domain.ResultRecord{}, domain.ErrResultNotFound
	}
	return record, nil
}

// Retake wipes the stored attempt (answers, flags, result together) and
// starts a fresh session with an empty answer map.
func (s *ExamService) Retake(ctx context.Context, identity domain.UserIdentity, testID string) (*Session, error) {
	userKey := domain.ResolveUserKey(identity)
	if userKey == "" {
		return nil, domain.ErrNoIdentity
	}
	if session, ok := s.sessions.get(userKey, testID); ok {
		session.Close()
		s.sessions.remove(userKey, testID)
	}
	if err := s.store.ClearAttempt(ctx, userKey, testID); err != nil {
		return nil, err
	}
	return s.StartSession(ctx, identity, testID)
}

// Overview computes the dashboard: every test in the catalog with the user's
// status on it, plus aggregate stats.
func (s *ExamService) Overview(ctx context.Context, identity domain.UserIdentity) ([]domain.TestStatus, domain.UserStats, error) {
	userKey := domain.ResolveUserKey(identity)
	if userKey == "" {
		return nil, domain.UserStats{}, domain.ErrNoIdentity
	}

	tests, err := s.tests.ListTests(ctx)
	if err != nil {
		return nil, domain.UserStats{}, err
	}

	statuses := make([]domain.TestStatus, 0, len(tests))
	stats := domain.UserStats{TotalTests: len(tests)}
	scoreSum, scored := 0, 0

	for _, test := range tests {
		status := domain.TestStatus{
			ID:              test.ID,
			Title:           test.Title,
			Description:     test.Description,
			DurationMinutes: test.DurationMinutes,
			PassingScore:    test.PassingScore,
			Status:          domain.StatusAvailable,
		}

		record, ok, err := s.store.LoadResult(ctx, userKey, test.ID)
		switch {
		case err != nil:
			return nil, domain.UserStats{}, err
		case ok:
			score := record.Score
			completedAt := record.CompletedAt
			status.Score = &score
			status.CompletedAt = &completedAt
			if record.Passed {
				status.Status = domain.StatusCompleted
				stats.CompletedTests++
			} else {
				status.Status = domain.StatusFailed
			}
			scoreSum += score
			scored++
		default:
			answers, err := s.store.LoadAnswers(ctx, userKey, test.ID)
			if err != nil {
				return nil, domain.UserStats{}, err
			}
			if len(answers) > 0 {
				status.Status = domain.StatusInProgress
			}
		}
		statuses = append(statuses, status)
	}

	if scored > 0 {
		stats.AverageScore = int(float64(scoreSum)/float64(scored) + 0.5)
	}
	return statuses, stats, nil
}

// Certificate builds the payload for the external certificate generator.
// Only passing attempts are eligible.
func (s *ExamService) Certificate(ctx context.Context, identity domain.UserIdentity, testID string) (domain.CertificateRequest, error) {
	record, err := s.Result(ctx, identity, testID)
	if err != nil {
		return domain.CertificateRequest{}, err
	}
	if !record.Passed {
		return domain.CertificateRequest{}, domain.ErrNotPassed
	}
	test, err := s.tests.GetTest(ctx, testID)
	if err != nil {
		return domain.CertificateRequest{}, err
	}

	req := domain.CertificateRequest{
		CertificateID: "PS-" + testID + "-" + record.CompletedAt.Format("2006-01-02"),
		Recipient:     identity.Name,
		TestTitle:     test.Title,
		Score:         record.Score,
		PassingScore:  test.PassingScore,
		CompletedAt:   record.CompletedAt,
	}
	if band, ok := RatingFor(test, record.CorrectAnswers); ok {
		req.RatingLabel = band.Label
	}
	return req, nil
}
