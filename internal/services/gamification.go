package services

import (
	"math"
	"time"

	"studyhub-backend/internal/models"
)

// Reward math for sessions and quizzes. Kept pure so the numbers stay
// deterministic and testable; callers persist the results.

// SessionDuration converts a session's wall time to whole minutes.
func SessionDuration(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Minutes()))
}

// SessionRewards returns the XP and streak increment for a finished session:
// 10 XP per full 5 minutes, streak only when the session ran at least 25.
func SessionRewards(durationMinutes int) (xp, streakIncrement int) {
	xp = durationMinutes / 5 * 10
	if durationMinutes >= 25 {
		streakIncrement = 1
	}
	return xp, streakIncrement
}

// QuizXP awards 5 XP per full 10% of the score.
func QuizXP(score int) int {
	return score / 10 * 5
}

// LevelForXP: every 1000 XP is a level, starting at 1.
func LevelForXP(xp int) int {
	return xp/1000 + 1
}

// GradeQuiz joins the submitted answers onto the question set by question id
// and scores by exact correct-index equality. Returns the graded questions,
// the 0-100 score and the summed time spent.
func GradeQuiz(questions []models.QuizQuestion, answers []models.QuizAnswer) ([]models.QuizQuestion, int, int) {
	byID := make(map[string]models.QuizAnswer, len(answers))
	for _, a := range answers {
		byID[a.QuestionID] = a
	}

	graded := make([]models.QuizQuestion, len(questions))
	correct := 0
	totalTime := 0
	for i, q := range questions {
		graded[i] = q
		if a, ok := byID[q.ID]; ok {
			userAnswer := a.UserAnswer
			timeSpent := a.TimeSpent
			graded[i].UserAnswer = &userAnswer
			graded[i].TimeSpent = &timeSpent
			totalTime += timeSpent
			if userAnswer == q.CorrectAnswer {
				correct++
			}
		}
	}

	score := 0
	if len(questions) > 0 {
		score = int(math.Round(float64(correct) / float64(len(questions)) * 100))
	}
	return graded, score, totalTime
}

// StripAnswers removes the answer key and any caller-supplied answers from a
// question set. Served for quizzes that have not been scored yet; the stored
// copy keeps the key for grading.
func StripAnswers(questions []models.QuizQuestion) []models.QuizQuestion {
	stripped := make([]models.QuizQuestion, len(questions))
	for i, q := range questions {
		stripped[i] = q
		stripped[i].CorrectAnswer = 0
		stripped[i].Explanation = ""
		stripped[i].UserAnswer = nil
		stripped[i].TimeSpent = nil
	}
	return stripped
}
