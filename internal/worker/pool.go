package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"studyhub-backend/internal/models"
	"studyhub-backend/internal/repository"
	"studyhub-backend/internal/services"
)

type Pool struct {
	redis       *redis.Client
	gemini      *services.GeminiService
	fileExtract *services.FileExtractService
	events      *services.EventService
	jobRepo     *repository.JobRepo
	docRepo     *repository.DocumentRepo
	quizRepo    *repository.QuizRepo
	storagePath string
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	gemini *services.GeminiService,
	fileExtract *services.FileExtractService,
	events *services.EventService,
	jobRepo *repository.JobRepo,
	docRepo *repository.DocumentRepo,
	quizRepo *repository.QuizRepo,
	storagePath string,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		gemini:      gemini,
		fileExtract: fileExtract,
		events:      events,
		jobRepo:     jobRepo,
		docRepo:     docRepo,
		quizRepo:    quizRepo,
		storagePath: storagePath,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	queues := []string{
		"queue:" + models.JobDocumentExtraction,
		"queue:" + models.JobQuizGeneration,
	}

	for i := 0; i < p.workerCount; i++ {
		go p.worker(i, queues)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int, queues []string) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, 30*time.Second, queues...).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		// One worker per job, across instances.
		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)

		p.jobRepo.MarkProcessing(ctx, job.ID)

		var processErr error
		switch job.Type {
		case models.JobDocumentExtraction:
			processErr = p.processDocumentExtraction(ctx, &job)
		case models.JobQuizGeneration:
			processErr = p.processQuizGeneration(ctx, &job)
		default:
			processErr = fmt.Errorf("unknown job type: %s", job.Type)
		}

		if processErr != nil {
			p.handleFailure(ctx, &job, processErr)
		} else {
			p.handleSuccess(ctx, &job)
		}

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) processDocumentExtraction(ctx context.Context, job *models.Job) error {
	doc, err := p.docRepo.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	if doc.StoragePath == nil || *doc.StoragePath == "" {
		return fmt.Errorf("document has no stored file")
	}

	fullPath := filepath.Join(p.storagePath, *doc.StoragePath)
	text, err := p.fileExtract.ExtractTextFromPath(fullPath)
	if err != nil {
		return fmt.Errorf("failed to extract text from %s: %w", fullPath, err)
	}

	if err := p.docRepo.SetExtractedText(ctx, doc.ID, text, nil); err != nil {
		return fmt.Errorf("failed to save extracted text: %w", err)
	}

	log.Printf("Extracted text for document %s (%d chars)", doc.ID, len(text))
	return nil
}

func (p *Pool) processQuizGeneration(ctx context.Context, job *models.Job) error {
	quiz, err := p.quizRepo.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	doc, err := p.docRepo.GetByID(ctx, quiz.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	if doc.ExtractedText == nil || *doc.ExtractedText == "" {
		return fmt.Errorf("document %s has no extracted text yet", doc.ID)
	}

	config := struct {
		NumQuestions int    `json:"num_questions"`
		Difficulty   string `json:"difficulty"`
	}{NumQuestions: 5, Difficulty: quiz.Difficulty}
	if len(job.ConfigJSON) > 0 {
		json.Unmarshal(job.ConfigJSON, &config)
	}

	questions, err := p.gemini.GenerateQuizQuestions(ctx, *doc.ExtractedText, config.NumQuestions, config.Difficulty)
	if err != nil {
		return err
	}

	if err := p.quizRepo.SetQuestions(ctx, quiz.ID, questions); err != nil {
		return fmt.Errorf("failed to save generated questions: %w", err)
	}

	log.Printf("Generated %d questions for quiz %s", len(questions), quiz.ID)
	return nil
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.jobRepo.MarkCompleted(ctx, job.ID)

	p.events.PublishUserUpdate(ctx, job.UserID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			ResultID:   job.ReferenceID,
			ResultType: resultType(job.Type),
		},
	})

	log.Printf("Job %s completed successfully", job.ID)
}

// retryable reports whether a failed job has attempts left under its cap.
func retryable(job *models.Job) bool {
	max := job.MaxRetries
	if max <= 0 {
		max = 3
	}
	return job.RetryCount < max
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	// Keep the stored counter in step with the payload travelling
	// through Redis, so restarts do not reset the cap.
	if dbErr := p.jobRepo.IncrementRetry(ctx, job.ID); dbErr != nil {
		log.Printf("Job %s: failed to record retry: %v", job.ID, dbErr)
	}

	if retryable(job) {
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)

		jobBytes, _ := json.Marshal(job)
		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), "queue:"+job.Type, string(jobBytes))
		})
		return
	}

	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.jobRepo.MarkFailed(ctx, job.ID, errMsg)

	p.events.PublishUserUpdate(ctx, job.UserID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}

func resultType(jobType string) string {
	switch jobType {
	case models.JobQuizGeneration:
		return "quiz"
	default:
		return "document"
	}
}
