package domain

import "time"

// FeedbackMode controls when correctness is revealed during an attempt.
type FeedbackMode string

const (
	// FeedbackDeferred reveals correctness only in the post-submit results view.
	FeedbackDeferred FeedbackMode = "deferred"
	// FeedbackImmediate locks each question on answer and shows correctness inline.
	FeedbackImmediate FeedbackMode = "immediate"
)

// UserIdentity is whatever the login/registration flow captured. Only Name is
// guaranteed; ID and Email may be empty.
type UserIdentity struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name"`
}

// Question models an MCQ question with exactly one correct option index.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// RatingBand maps a raw-point range to a qualitative label. Bands are
// display-only configuration on a test's own point scale; they never affect
// pass/fail.
type RatingBand struct {
	MinPoints      int    `json:"minPoints"`
	Label          string `json:"label"`
	Recommendation string `json:"recommendation"`
}

// Test is an immutable test definition from the bank.
// PassingScore is always a percentage (0-100); point-scale thresholds from
// legacy content are normalized at the source and survive only as RatingBands.
type Test struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Description     string       `json:"description,omitempty"`
	PassingScore    int          `json:"passingScore"`
	DurationMinutes int          `json:"durationMinutes"`
	FeedbackMode    FeedbackMode `json:"feedbackMode,omitempty"`
	Questions       []Question   `json:"questions"`
	RatingBands     []RatingBand `json:"ratingBands,omitempty"`
}

// Mode returns the configured feedback mode, defaulting to deferred.
func (t Test) Mode() FeedbackMode {
	if t.FeedbackMode == FeedbackImmediate {
		return FeedbackImmediate
	}
	return FeedbackDeferred
}

// ResultRecord is the persisted outcome of one completed attempt. At most one
// exists per (user, test); a retake overwrites it.
type ResultRecord struct {
	TestID         string         `json:"testId"`
	Score          int            `json:"score"`
	Passed         bool           `json:"passed"`
	TotalQuestions int            `json:"totalQuestions"`
	CorrectAnswers int            `json:"correctAnswers"`
	TimeTaken      int            `json:"timeTaken"`
	CompletedAt    time.Time      `json:"completedAt"`
	Answers        map[string]int `json:"answers"`
}

// TestStatus is a dashboard row: a test plus the user's standing on it.
type TestStatus struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	DurationMinutes int        `json:"durationMinutes"`
	PassingScore    int        `json:"passingScore"`
	Status          string     `json:"status"`
	Score           *int       `json:"score,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

const (
	StatusAvailable  = "available"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// UserStats aggregates a user's standing across the whole catalog.
type UserStats struct {
	CompletedTests int `json:"completedTests"`
	TotalTests     int `json:"totalTests"`
	AverageScore   int `json:"averageScore"`
}

// CertificateRequest is the payload handed to the external certificate
// generator for a passing result. Rendering is out of scope here.
type CertificateRequest struct {
	CertificateID string    `json:"certificateId"`
	Recipient     string    `json:"recipient"`
	TestTitle     string    `json:"testTitle"`
	Score         int       `json:"score"`
	PassingScore  int       `json:"passingScore"`
	RatingLabel   string    `json:"ratingLabel,omitempty"`
	CompletedAt   time.Time `json:"completedAt"`
}
