package domain

import "errors"

var (
	// ErrNoIdentity is returned when no stable user key can be resolved.
	ErrNoIdentity = errors.New("no resolvable user identity")
	// ErrTestNotFound indicates the requested test is not in the bank.
	ErrTestNotFound = errors.New("test not found")
	// ErrEmptyTest rejects a test definition that carries no questions.
	ErrEmptyTest = errors.New("test has no questions")
	// ErrSessionNotFound is returned when no attempt session is active.
	ErrSessionNotFound = errors.New("test session not found")
	// ErrSessionNotActive rejects mutations outside the in-progress state.
	ErrSessionNotActive = errors.New("test session is not active")
	// ErrIndexOutOfRange rejects navigation to an invalid question index.
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrOptionOutOfRange rejects an answer index with no matching option.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrQuestionLocked indicates the question already received its one
	// answer in immediate-feedback mode.
	ErrQuestionLocked = errors.New("question is locked after feedback")
	// ErrFeedbackPending is returned when advancing in immediate-feedback
	// mode before the current question has been answered.
	ErrFeedbackPending = errors.New("current question has no feedback to acknowledge")
	// ErrResultNotFound indicates no completed attempt exists for the pair.
	ErrResultNotFound = errors.New("no result recorded for this attempt")
	// ErrNotPassed indicates a certificate was requested for a failed attempt.
	ErrNotPassed = errors.New("attempt did not meet the passing score")
)
