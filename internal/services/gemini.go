package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"studyhub-backend/internal/models"
)

const maxContextChars = 30000

type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // concurrency token bucket
}

func NewGeminiService(apiKey string, concurrentReqs int) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-3-flash-preview")
	model.SetTemperature(0.3)
	model.SetTopP(0.95)

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:   client,
		model:    model,
		rateChan: rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a concurrency slot is available.
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// ChatWithDocument answers a question against a document's extracted text,
// replaying the conversation history as alternating turns.
func (s *GeminiService) ChatWithDocument(ctx context.Context, documentText, message string, history []models.ChatMessage) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	if len(documentText) > maxContextChars {
		documentText = documentText[:maxContextChars]
	}

	chat := s.model.StartChat()
	chat.History = []*genai.Content{
		{
			Role: "user",
			Parts: []genai.Part{genai.Text(
				"You are a study assistant. Answer questions using only the following document. " +
					"If the answer is not in the document, say so.\n\nDOCUMENT:\n" + documentText,
			)},
		},
		{
			Role:  "model",
			Parts: []genai.Part{genai.Text("Understood. I will answer questions about this document.")},
		},
	}
	for _, m := range history {
		role := "user"
		if m.Role == "model" {
			role = "model"
		}
		chat.History = append(chat.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := chat.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("gemini chat failed: %w", err)
	}

	return responseText(resp), nil
}

// GenerateQuizQuestions prompts the model for a multiple-choice question set
// over the document text and parses the JSON it returns.
func (s *GeminiService) GenerateQuizQuestions(ctx context.Context, documentText string, numQuestions int, difficulty string) ([]models.QuizQuestion, error) {
	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	if len(documentText) > maxContextChars {
		documentText = documentText[:maxContextChars]
	}

	prompt := fmt.Sprintf(`Generate exactly %d multiple-choice comprehension questions of %s difficulty from the document below.
Respond with ONLY a JSON array, no prose, where each element has:
  "question": the question text,
  "options": an array of exactly 4 answer strings,
  "correct_answer": the 0-based index of the correct option,
  "explanation": one sentence explaining the correct answer.

DOCUMENT:
%s`, numQuestions, difficulty, documentText)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini quiz generation failed: %w", err)
	}

	raw := stripCodeFence(responseText(resp))

	var generated []struct {
		Question      string   `json:"question"`
		Options       []string `json:"options"`
		CorrectAnswer int      `json:"correct_answer"`
		Explanation   string   `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(raw), &generated); err != nil {
		return nil, fmt.Errorf("failed to parse generated questions: %w", err)
	}
	if len(generated) == 0 {
		return nil, fmt.Errorf("model returned no questions")
	}

	questions := make([]models.QuizQuestion, 0, len(generated))
	for _, g := range generated {
		if g.Question == "" || len(g.Options) < 2 {
			continue
		}
		if g.CorrectAnswer < 0 || g.CorrectAnswer >= len(g.Options) {
			continue
		}
		questions = append(questions, models.QuizQuestion{
			ID:            uuid.NewString(),
			Question:      g.Question,
			Options:       g.Options,
			CorrectAnswer: g.CorrectAnswer,
			Explanation:   g.Explanation,
		})
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("model returned no usable questions")
	}
	return questions, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// stripCodeFence removes a surrounding ```json ... ``` fence if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
