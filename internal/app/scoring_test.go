package app_test

import (
	"testing"

	"cbt-exam-service/internal/app"
	"cbt-exam-service/internal/domain"
)

func TestScore(t *testing.T) {
	test := fourQuestionTest()

	tests := []struct {
		name    string
		answers map[string]int
		score   int
		correct int
		passed  bool
	}{
		{name: "no answers scores zero", answers: map[string]int{}, score: 0, correct: 0, passed: false},
		{name: "all correct scores hundred", answers: map[string]int{"q1": 0, "q2": 1, "q3": 2, "q4": 3}, score: 100, correct: 4, passed: true},
		{name: "three of four passes at seventy", answers: map[string]int{"q1": 0, "q2": 1, "q3": 2, "q4": 0}, score: 75, correct: 3, passed: true},
		{name: "half fails at seventy", answers: map[string]int{"q1": 0, "q2": 1}, score: 50, correct: 2, passed: false},
		{name: "wrong answers count as incorrect", answers: map[string]int{"q1": 3, "q2": 3, "q3": 3, "q4": 3}, score: 25, correct: 1, passed: false},
		{name: "unknown question ids are ignored", answers: map[string]int{"q1": 0, "ghost": 2}, score: 25, correct: 1, passed: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			record := app.Score(test, tc.answers)
			if record.Score != tc.score {
				t.Fatalf("expected score %d, got %d", tc.score, record.Score)
			}
			if record.CorrectAnswers != tc.correct {
				t.Fatalf("expected %d correct, got %d", tc.correct, record.CorrectAnswers)
			}
			if record.Passed != tc.passed {
				t.Fatalf("expected passed=%v, got %v", tc.passed, record.Passed)
			}
			if record.TotalQuestions != 4 {
				t.Fatalf("expected 4 total questions, got %d", record.TotalQuestions)
			}
		})
	}
}

func TestScoreRoundsHalfAwayFromZero(t *testing.T) {
	test := domain.Test{
		ID:           "t",
		PassingScore: 70,
		Questions: []domain.Question{
			{ID: "q1", Options: []string{"a", "b"}, CorrectAnswer: 0},
			{ID: "q2", Options: []string{"a", "b"}, CorrectAnswer: 0},
			{ID: "q3", Options: []string{"a", "b"}, CorrectAnswer: 0},
		},
	}

	if got := app.Score(test, map[string]int{"q1": 0}).Score; got != 33 {
		t.Fatalf("1/3 should round to 33, got %d", got)
	}
	if got := app.Score(test, map[string]int{"q1": 0, "q2": 0}).Score; got != 67 {
		t.Fatalf("2/3 should round to 67, got %d", got)
	}

	// 1/8 = 12.5 rounds up, not to even.
	eight := domain.Test{ID: "t8", PassingScore: 70}
	for _, id := range []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7", "q8"} {
		eight.Questions = append(eight.Questions, domain.Question{ID: id, Options: []string{"a", "b"}, CorrectAnswer: 0})
	}
	if got := app.Score(eight, map[string]int{"q1": 0}).Score; got != 13 {
		t.Fatalf("1/8 should round to 13, got %d", got)
	}
}

func TestScoreEmptyTest(t *testing.T) {
	record := app.Score(domain.Test{ID: "empty", PassingScore: 70}, map[string]int{})
	if record.Score != 0 || record.Passed {
		t.Fatalf("empty test should score 0 and fail, got %+v", record)
	}
}

func TestRatingFor(t *testing.T) {
	test := domain.Test{
		RatingBands: []domain.RatingBand{
			{MinPoints: 27, Label: "Expert"},
			{MinPoints: 21, Label: "Competent"},
			{MinPoints: 15, Label: "Basic"},
			{MinPoints: 0, Label: "Not Ready"},
		},
	}

	tests := []struct {
		points int
		label  string
	}{
		{30, "Expert"},
		{27, "Expert"},
		{26, "Competent"},
		{21, "Competent"},
		{15, "Basic"},
		{14, "Not Ready"},
		{0, "Not Ready"},
	}
	for _, tc := range tests {
		band, ok := app.RatingFor(test, tc.points)
		if !ok {
			t.Fatalf("expected a band for %d points", tc.points)
		}
		if band.Label != tc.label {
			t.Fatalf("points %d: expected %s, got %s", tc.points, tc.label, band.Label)
		}
	}

	if _, ok := app.RatingFor(domain.Test{}, 10); ok {
		t.Fatalf("test without bands should report no rating")
	}
}

func fourQuestionTest() domain.Test {
	return domain.Test{
		ID:              "quiz-1",
		Title:           "Sample Competency Quiz",
		PassingScore:    70,
		DurationMinutes: 45,
		Questions: []domain.Question{
			{ID: "q1", Text: "First?", Options: []string{"right", "wrong", "wrong", "wrong"}, CorrectAnswer: 0},
			{ID: "q2", Text: "Second?", Options: []string{"wrong", "right", "wrong", "wrong"}, CorrectAnswer: 1},
			{ID: "q3", Text: "Third?", Options: []string{"wrong", "wrong", "right", "wrong"}, CorrectAnswer: 2},
			{ID: "q4", Text: "Fourth?", Options: []string{"wrong", "wrong", "wrong", "right"}, CorrectAnswer: 3},
		},
	}
}
