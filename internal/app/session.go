package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"cbt-exam-service/internal/domain"
)

// SessionState is a phase in the attempt lifecycle.
type SessionState string

const (
	StateLoading          SessionState = "loading"
	StateInProgress       SessionState = "in_progress"
	StateConfirmingSubmit SessionState = "confirming_submit"
	StateSubmitting       SessionState = "submitting"
	StateComplete         SessionState = "complete"
)

// Feedback is what immediate-feedback mode reveals right after an answer.
type Feedback struct {
	QuestionID    string `json:"questionId"`
	Correct       bool   `json:"correct"`
	CorrectAnswer int    `json:"correctAnswer"`
	Explanation   string `json:"explanation,omitempty"`
}

// Snapshot is a read-only view of the session for transports and tests.
type Snapshot struct {
	TestID         string               `json:"testId"`
	State          SessionState         `json:"state"`
	CurrentIndex   int                  `json:"currentIndex"`
	TotalQuestions int                  `json:"totalQuestions"`
	AnsweredCount  int                  `json:"answeredCount"`
	TimeLeft       int                  `json:"timeLeft"`
	Answers        map[string]int       `json:"answers"`
	Flagged        []string             `json:"flagged"`
	Locked         []string             `json:"locked,omitempty"`
	Result         *domain.ResultRecord `json:"result,omitempty"`
}

// Session is the state machine for one user's attempt at one test. All
// mutations persist write-through to the attempt store before returning, so a
// session can always be resumed from what the store holds. The countdown is
// tick-driven: tests feed Tick directly, transports start the shared clock
// once via StartCountdown.
type Session struct {
	userKey    string
	test       domain.Test
	store      AttemptStore
	clock      func() time.Time
	gradeDelay time.Duration

	mu          sync.Mutex
	state       SessionState
	current     int
	timeLeft    int
	ticking     bool
	answers     map[string]int
	flags       map[string]struct{}
	locked      map[string]struct{}
	submitted   bool
	closed      bool
	result      *domain.ResultRecord
	subscribers map[chan Snapshot]struct{}
}

func newSession(userKey string, test domain.Test, store AttemptStore, gradeDelay time.Duration, clock func() time.Time) *Session {
	return &Session{
		userKey:     userKey,
		test:        test,
		store:       store,
		clock:       clock,
		gradeDelay:  gradeDelay,
		state:       StateLoading,
		timeLeft:    test.DurationMinutes * 60,
		answers:     make(map[string]int),
		flags:       make(map[string]struct{}),
		locked:      make(map[string]struct{}),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// load restores persisted answers and flags, then moves to InProgress. The
// countdown is deliberately not persisted: a resumed session restarts with
// the full duration, matching how attempts have always behaved.
func (s *Session) load(ctx context.Context) error {
	answers, err := s.store.LoadAnswers(ctx, s.userKey, s.test.ID)
	if err != nil {
		return err
	}
	flags, err := s.store.LoadFlags(ctx, s.userKey, s.test.ID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, idx := range answers {
		s.answers[id] = idx
	}
	for _, id := range flags {
		s.flags[id] = struct{}{}
	}
	if s.test.Mode() == domain.FeedbackImmediate {
		// Answered questions stay locked across a resume.
		for id := range s.answers {
			s.locked[id] = struct{}{}
		}
	}
	s.state = StateInProgress
	s.broadcastLocked()
	return nil
}

// SelectAnswer records the given option index for the current question. In
// immediate-feedback mode the question locks and the returned Feedback is
// non-nil; in deferred mode re-answering is allowed and Feedback is nil.
func (s *Session) SelectAnswer(ctx context.Context, option int) (*Feedback, error) {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotActive
	}
	question := s.test.Questions[s.current]
	if option < 0 || option >= len(question.Options) {
		s.mu.Unlock()
		return nil, domain.ErrOptionOutOfRange
	}

	var feedback *Feedback
	if s.test.Mode() == domain.FeedbackImmediate {
		if _, ok := s.locked[question.ID]; ok {
			s.mu.Unlock()
			return nil, domain.ErrQuestionLocked
		}
		s.locked[question.ID] = struct{}{}
		feedback = &Feedback{
			QuestionID:    question.ID,
			Correct:       option == question.CorrectAnswer,
			CorrectAnswer: question.CorrectAnswer,
			Explanation:   question.Explanation,
		}
	}
	s.answers[question.ID] = option
	answers := copyAnswers(s.answers)
	s.broadcastLocked()
	s.mu.Unlock()

	if err := s.store.SaveAnswers(ctx, s.userKey, s.test.ID, answers); err != nil {
		return feedback, err
	}
	return feedback, nil
}

// Navigate moves the current-question pointer to an explicit index. An
// out-of-range index is rejected and the pointer stays where it was.
func (s *Session) Navigate(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return domain.ErrSessionNotActive
	}
	if index < 0 || index >= len(s.test.Questions) {
		return domain.ErrIndexOutOfRange
	}
	s.current = index
	s.broadcastLocked()
	return nil
}

// Next advances to the following question; at the last question it is a no-op.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return domain.ErrSessionNotActive
	}
	if s.current < len(s.test.Questions)-1 {
		s.current++
		s.broadcastLocked()
	}
	return nil
}

// Prev moves back one question; at the first question it is a no-op.
func (s *Session) Prev() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return domain.ErrSessionNotActive
	}
	if s.current > 0 {
		s.current--
		s.broadcastLocked()
	}
	return nil
}

// ToggleFlag flips the advisory flag on the current question.
func (s *Session) ToggleFlag(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.mu.Unlock()
		return domain.ErrSessionNotActive
	}
	id := s.test.Questions[s.current].ID
	if _, ok := s.flags[id]; ok {
		delete(s.flags, id)
	} else {
		s.flags[id] = struct{}{}
	}
	flags := sortedFlags(s.flags)
	s.broadcastLocked()
	s.mu.Unlock()

	return s.store.SaveFlags(ctx, s.userKey, s.test.ID, flags)
}

// RequestSubmit asks for confirmation before grading.
func (s *Session) RequestSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return domain.ErrSessionNotActive
	}
	s.state = StateConfirmingSubmit
	s.broadcastLocked()
	return nil
}

// CancelSubmit returns from the confirmation prompt to the test.
func (s *Session) CancelSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConfirmingSubmit {
		return domain.ErrSessionNotActive
	}
	s.state = StateInProgress
	s.broadcastLocked()
	return nil
}

// ConfirmSubmit begins grading after the user confirmed. A second confirm
// arriving after submission already started is a silent no-op.
func (s *Session) ConfirmSubmit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return nil
	}
	if s.state != StateConfirmingSubmit {
		return domain.ErrSessionNotActive
	}
	s.beginSubmitLocked(ctx)
	return nil
}

// AcknowledgeFeedback advances past an answered question in immediate mode.
// Acknowledging the last question completes the attempt with no confirm step.
func (s *Session) AcknowledgeFeedback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return domain.ErrSessionNotActive
	}
	if s.test.Mode() != domain.FeedbackImmediate {
		return domain.ErrFeedbackPending
	}
	id := s.test.Questions[s.current].ID
	if _, ok := s.locked[id]; !ok {
		return domain.ErrFeedbackPending
	}
	if s.current == len(s.test.Questions)-1 {
		s.beginSubmitLocked(ctx)
		return nil
	}
	s.current++
	s.broadcastLocked()
	return nil
}

// Tick decrements the countdown by one second. The clock only runs while the
// attempt is in progress; it pauses during the submit confirmation prompt and
// ticks arriving after submission started are ignored. Reaching zero
// auto-submits, bypassing confirmation.
func (s *Session) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress || s.submitted || s.closed {
		return
	}
	if s.timeLeft > 0 {
		s.timeLeft--
	}
	if s.timeLeft == 0 {
		s.beginSubmitLocked(ctx)
		return
	}
	s.broadcastLocked()
}

// StartCountdown launches the clock feeding Tick at the given interval. Only
// the first call starts it, so overlapping connections to the same session
// share a single clock instead of compounding it. The goroutine stops once
// the session closes or completes.
func (s *Session) StartCountdown(interval time.Duration) {
	s.mu.Lock()
	if s.ticking || s.closed || s.state == StateComplete {
		s.mu.Unlock()
		return
	}
	s.ticking = true
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if s.done() {
				return
			}
			s.Tick(context.Background())
		}
	}()
}

func (s *Session) done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.state == StateComplete
}

// idle reports whether nothing needs the session kept in memory anymore:
// no subscriber is attached, or the attempt already completed.
func (s *Session) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers) == 0 || s.state == StateComplete
}

// beginSubmitLocked is the single entry into grading. The submitted guard
// makes a timer expiry racing a manual submit resolve to exactly one grading
// pass; whoever arrives second finds the flag set and does nothing.
func (s *Session) beginSubmitLocked(ctx context.Context) {
	if s.submitted {
		return
	}
	s.submitted = true
	s.state = StateSubmitting
	timeTaken := s.test.DurationMinutes*60 - s.timeLeft
	answers := copyAnswers(s.answers)
	s.broadcastLocked()

	if s.gradeDelay <= 0 {
		s.completeLocked(ctx, answers, timeTaken)
		return
	}
	go func() {
		time.Sleep(s.gradeDelay)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			// The session went away while grading was pending; nothing
			// may mutate state or the store anymore.
			return
		}
		s.completeLocked(context.Background(), answers, timeTaken)
	}()
}

func (s *Session) completeLocked(ctx context.Context, answers map[string]int, timeTaken int) {
	record := Score(s.test, answers)
	record.TimeTaken = timeTaken
	record.CompletedAt = s.clock()
	if err := s.store.SaveResult(ctx, s.userKey, s.test.ID, record); err != nil {
		// Leave the session in Submitting; a retry can land the result.
		s.submitted = false
		s.state = StateInProgress
		s.broadcastLocked()
		return
	}
	s.result = &record
	s.state = StateComplete
	s.broadcastLocked()
}

// Close detaches the session. The countdown stops because nothing ticks it
// anymore, persisted answers and flags stay in the store for a resume, and a
// grading pass still pending its delay is dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// Subscribe returns a channel receiving a snapshot after every state change,
// primed with the current one. The cancel func must be called to avoid leaks.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so a slow reader never blocks ticks.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		TestID:         s.test.ID,
		State:          s.state,
		CurrentIndex:   s.current,
		TotalQuestions: len(s.test.Questions),
		AnsweredCount:  len(s.answers),
		TimeLeft:       s.timeLeft,
		Answers:        copyAnswers(s.answers),
		Flagged:        sortedFlags(s.flags),
		Result:         s.result,
	}
	if len(s.locked) > 0 {
		snap.Locked = sortedFlags(s.locked)
	}
	return snap
}

func copyAnswers(answers map[string]int) map[string]int {
	out := make(map[string]int, len(answers))
	for id, idx := range answers {
		out[id] = idx
	}
	return out
}

func sortedFlags(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
