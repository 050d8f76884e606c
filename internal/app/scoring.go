package app

import (
	"math"

	"cbt-exam-service/internal/domain"
)

// Score grades an answer map against a test definition. Unanswered questions
// count as incorrect; an answer for an unknown question id is ignored. The
// percentage rounds half away from zero. The caller fills TimeTaken and
// CompletedAt before persisting.
func Score(test domain.Test, answers map[string]int) domain.ResultRecord {
	correct := 0
	for _, question := range test.Questions {
		if selected, ok := answers[question.ID]; ok && selected == question.CorrectAnswer {
			correct++
		}
	}

	total := len(test.Questions)
	score := 0
	if total > 0 {
		score = int(math.Round(float64(correct) / float64(total) * 100))
	}

	return domain.ResultRecord{
		TestID:         test.ID,
		Score:          score,
		Passed:         score >= test.PassingScore,
		TotalQuestions: total,
		CorrectAnswers: correct,
		Answers:        copyAnswers(answers),
	}
}

// RatingFor looks up the rating band for a raw point count (one point per
// correct answer). Tests without bands report no rating.
func RatingFor(test domain.Test, points int) (domain.RatingBand, bool) {
	var best domain.RatingBand
	found := false
	for _, band := range test.RatingBands {
		if points >= band.MinPoints && (!found || band.MinPoints > best.MinPoints) {
			best = band
			found = true
		}
	}
	return best, found
}
