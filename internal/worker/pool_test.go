package worker

import (
	"testing"

	"studyhub-backend/internal/models"
)

func TestRetryable_HonorsJobCap(t *testing.T) {
	tests := []struct {
		name       string
		retryCount int
		maxRetries int
		expected   bool
	}{
		{"first failure under cap", 1, 3, true},
		{"at cap", 3, 3, false},
		{"tight cap exhausted immediately", 1, 1, false},
		{"generous cap still open", 4, 10, true},
		{"zero cap falls back to default", 2, 0, true},
		{"zero cap default exhausted", 3, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			job := &models.Job{RetryCount: tc.retryCount, MaxRetries: tc.maxRetries}
			if got := retryable(job); got != tc.expected {
				t.Errorf("retryable(count=%d, max=%d) = %v, want %v",
					tc.retryCount, tc.maxRetries, got, tc.expected)
			}
		})
	}
}

func TestResultType(t *testing.T) {
	if got := resultType(models.JobQuizGeneration); got != "quiz" {
		t.Errorf("Expected quiz, got %q", got)
	}
	if got := resultType(models.JobDocumentExtraction); got != "document" {
		t.Errorf("Expected document, got %q", got)
	}
}
