package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"quizly-backend/internal/models"
)

const geminiModel = "gemini-2.5-flash"

const transcribePrompt = "Transcribe the provided audio verbatim. Return plain text only, without markdown, headers, or explanations."

// quizPromptTemplate fixes the generation rules; the transcript is
// appended verbatim so the prompt is deterministic for a given input.
const quizPromptTemplate = `Based on the following transcript, generate a quiz in valid JSON format.

The quiz must follow this exact structure:

{
  "title": "Create a concise quiz title based on the topic of the transcript.",
  "description": "Summarize the transcript in no more than 150 characters. Do not include any quiz questions or answers.",
  "questions": [
    {
      "question_title": "The question goes here.",
      "question_options": ["Option A", "Option B", "Option C", "Option D"],
      "answer": "The correct answer from the above options"
    }
  ]
}

Requirements:
- Each question must have exactly 4 distinct answer options.
- Only one correct answer is allowed per question, and it must be present in "question_options".
- The output must be valid JSON and parsable as-is.
- Do not include explanations, comments, or any text outside the JSON.
- Generate exactly 10 questions.

Transcript:
`

// GeminiService holds one process-wide model handle, shared read-only
// after construction.
type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // Token bucket
}

func NewGeminiService(apiKey string, concurrentReqs int) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(geminiModel)
	model.SetTemperature(0.3)
	model.SetTopP(0.95)

	// Token bucket for rate limiting
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

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return &DependencyError{Message: "timeout waiting for Gemini rate slot"}
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// TranscribeAudio uploads a local audio file through the Gemini File
// API and asks for a verbatim transcript. An empty transcript is valid
// output, not an error.
func (s *GeminiService) TranscribeAudio(ctx context.Context, path, mimeType string) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	audio, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer audio.Close()

	file, err := s.client.UploadFile(ctx, "", audio, &genai.UploadFileOptions{
		DisplayName: filepath.Base(path),
		MIMEType:    mimeType,
	})
	if err != nil {
		return "", &DependencyError{Message: fmt.Sprintf("failed to upload audio for transcription: %v", err)}
	}

	// Ensure remote file is cleaned up
	defer s.client.DeleteFile(context.Background(), file.Name)

	// Wait until file is active
	for i := 0; i < 20; i++ {
		current, getErr := s.client.GetFile(ctx, file.Name)
		if getErr != nil {
			return "", &DependencyError{Message: fmt.Sprintf("failed to get uploaded file status: %v", getErr)}
		}

		if current.State == genai.FileStateActive {
			file = current
			break
		}
		if current.State == genai.FileStateFailed {
			return "", &DependencyError{Message: "transcription backend failed to process the audio file"}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	if file.State != genai.FileStateActive {
		return "", &DependencyError{Message: "audio file did not become active in time"}
	}

	resp, err := s.model.GenerateContent(ctx,
		genai.Text(transcribePrompt),
		genai.FileData{MIMEType: mimeType, URI: file.URI},
	)
	if err != nil {
		return "", &DependencyError{Message: fmt.Sprintf("transcription error: %v", err)}
	}

	return strings.TrimSpace(extractText(resp)), nil
}

// GenerateQuiz prompts the model with the transcript and parses the
// response into a validated quiz the persistence layer can trust.
func (s *GeminiService) GenerateQuiz(ctx context.Context, transcript string) (*models.GeneratedQuiz, error) {
	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	prompt := buildQuizPrompt(transcript)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, &DependencyError{Message: fmt.Sprintf("quiz generation error: %v", err)}
	}

	return parseGeneratedQuiz(extractText(resp))
}

func buildQuizPrompt(transcript string) string {
	return quizPromptTemplate + transcript
}

// stripMarkdownFences removes a leading ``` fence (with an optional
// language tag such as "json") and a trailing ``` fence, if present.
func stripMarkdownFences(text string) string {
	cleaned := strings.TrimSpace(text)

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimPrefix(cleaned, "json")
		cleaned = strings.TrimSpace(cleaned)
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	return cleaned
}

// parseGeneratedQuiz parses model output into the fixed quiz shape.
// Parse failures are terminal; no substring recovery is attempted — a
// clean failure beats silently accepting malformed content.
func parseGeneratedQuiz(raw string) (*models.GeneratedQuiz, error) {
	cleaned := stripMarkdownFences(raw)

	var quiz models.GeneratedQuiz
	if err := json.Unmarshal([]byte(cleaned), &quiz); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("model returned non-JSON output: %v", err)}
	}

	if err := validateGeneratedQuiz(&quiz); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// validateGeneratedQuiz enforces the quiz schema: a title, a non-empty
// question list, exactly 4 distinct options per question, and an answer
// drawn from those options. The prompt asks for 10 questions but the
// count is advisory; any non-empty count passes.
func validateGeneratedQuiz(quiz *models.GeneratedQuiz) error {
	if strings.TrimSpace(quiz.Title) == "" {
		return &ValidationError{Message: "generated quiz is missing a title"}
	}
	if len(quiz.Questions) == 0 {
		return &ValidationError{Message: "generated quiz has no questions"}
	}

	for i, q := range quiz.Questions {
		if strings.TrimSpace(q.QuestionTitle) == "" {
			return &ValidationError{Message: fmt.Sprintf("question %d is missing a title", i+1)}
		}
		if len(q.QuestionOptions) != 4 {
			return &ValidationError{Message: fmt.Sprintf("question %d must have exactly 4 options, got %d", i+1, len(q.QuestionOptions))}
		}

		seen := make(map[string]bool, 4)
		answerFound := false
		for _, opt := range q.QuestionOptions {
			if seen[opt] {
				return &ValidationError{Message: fmt.Sprintf("question %d has duplicate options", i+1)}
			}
			seen[opt] = true
			if opt == q.Answer {
				answerFound = true
			}
		}
		if !answerFound {
			return &ValidationError{Message: fmt.Sprintf("question %d answer is not one of its options", i+1)}
		}
	}

	return nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
