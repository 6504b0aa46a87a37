package services

import (
	"testing"
	"time"

	"studyhub-backend/internal/models"
)

func TestSessionDuration(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		end      time.Time
		expected int
	}{
		{"exact minutes", start.Add(26 * time.Minute), 26},
		{"rounds down below half", start.Add(10*time.Minute + 20*time.Second), 10},
		{"rounds up at half", start.Add(10*time.Minute + 30*time.Second), 11},
		{"zero length", start, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SessionDuration(start, tc.end); got != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestSessionRewards(t *testing.T) {
	tests := []struct {
		name           string
		duration       int
		expectedXP     int
		expectedStreak int
	}{
		{"26 minute session", 26, 50, 1},
		{"exactly 25 minutes", 25, 50, 1},
		{"24 minutes no streak", 24, 40, 0},
		{"short session", 4, 0, 0},
		{"zero duration", 0, 0, 0},
		{"one hour", 60, 120, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			xp, streak := SessionRewards(tc.duration)
			if xp != tc.expectedXP {
				t.Errorf("Expected %d XP, got %d", tc.expectedXP, xp)
			}
			if streak != tc.expectedStreak {
				t.Errorf("Expected streak increment %d, got %d", tc.expectedStreak, streak)
			}
		})
	}
}

func TestQuizXP(t *testing.T) {
	tests := []struct {
		score    int
		expected int
	}{
		{100, 50},
		{67, 30},
		{9, 0},
		{0, 0},
	}

	for _, tc := range tests {
		if got := QuizXP(tc.score); got != tc.expected {
			t.Errorf("QuizXP(%d): expected %d, got %d", tc.score, tc.expected, got)
		}
	}
}

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		xp       int
		expected int
	}{
		{0, 1},
		{999, 1},
		{1000, 2},
		{2500, 3},
	}

	for _, tc := range tests {
		if got := LevelForXP(tc.xp); got != tc.expected {
			t.Errorf("LevelForXP(%d): expected %d, got %d", tc.xp, tc.expected, got)
		}
	}
}

func TestGradeQuiz(t *testing.T) {
	questions := []models.QuizQuestion{
		{ID: "q1", CorrectAnswer: 0},
		{ID: "q2", CorrectAnswer: 2},
		{ID: "q3", CorrectAnswer: 1},
	}

	answers := []models.QuizAnswer{
		{QuestionID: "q1", UserAnswer: 0, TimeSpent: 10},
		{QuestionID: "q2", UserAnswer: 2, TimeSpent: 15},
		{QuestionID: "q3", UserAnswer: 3, TimeSpent: 5},
	}

	graded, score, totalTime := GradeQuiz(questions, answers)

	// 2 of 3 correct rounds to 67
	if score != 67 {
		t.Errorf("Expected score 67, got %d", score)
	}
	if totalTime != 30 {
		t.Errorf("Expected total time 30, got %d", totalTime)
	}
	if graded[0].UserAnswer == nil || *graded[0].UserAnswer != 0 {
		t.Error("Expected first answer to be joined onto the question")
	}
	if graded[2].UserAnswer == nil || *graded[2].UserAnswer != 3 {
		t.Error("Expected wrong answer to be recorded as given")
	}
}

func TestGradeQuiz_AllCorrect(t *testing.T) {
	questions := []models.QuizQuestion{
		{ID: "a", CorrectAnswer: 1},
		{ID: "b", CorrectAnswer: 0},
	}
	answers := []models.QuizAnswer{
		{QuestionID: "a", UserAnswer: 1, TimeSpent: 3},
		{QuestionID: "b", UserAnswer: 0, TimeSpent: 4},
	}

	_, score, _ := GradeQuiz(questions, answers)
	if score != 100 {
		t.Errorf("Expected score 100, got %d", score)
	}
}

func TestGradeQuiz_MissingAnswers(t *testing.T) {
	questions := []models.QuizQuestion{
		{ID: "a", CorrectAnswer: 1},
		{ID: "b", CorrectAnswer: 0},
	}

	graded, score, totalTime := GradeQuiz(questions, nil)
	if score != 0 {
		t.Errorf("Expected score 0, got %d", score)
	}
	if totalTime != 0 {
		t.Errorf("Expected total time 0, got %d", totalTime)
	}
	if graded[0].UserAnswer != nil {
		t.Error("Unanswered question should stay unanswered")
	}
}

func TestGradeQuiz_Empty(t *testing.T) {
	_, score, _ := GradeQuiz(nil, nil)
	if score != 0 {
		t.Errorf("Expected score 0 for empty quiz, got %d", score)
	}
}

func TestStripAnswers(t *testing.T) {
	answer := 2
	spent := 30
	questions := []models.QuizQuestion{
		{ID: "q1", CorrectAnswer: 2, UserAnswer: &answer, TimeSpent: &spent},
	}

	stripped := StripAnswers(questions)
	if stripped[0].UserAnswer != nil || stripped[0].TimeSpent != nil {
		t.Error("Expected user answers to be zeroed")
	}
	if stripped[0].CorrectAnswer != 0 {
		t.Error("Expected the answer key to be removed")
	}
	if questions[0].UserAnswer == nil || questions[0].CorrectAnswer != 2 {
		t.Error("Input slice should not be mutated")
	}
}
