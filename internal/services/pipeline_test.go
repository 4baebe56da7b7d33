package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"quizly-backend/internal/models"
)

type acquirerFunc func(ctx context.Context, identity models.VideoIdentity, runID uuid.UUID) (string, string, error)

func (f acquirerFunc) DownloadAudio(ctx context.Context, identity models.VideoIdentity, runID uuid.UUID) (string, string, error) {
	return f(ctx, identity, runID)
}

type transcriberFunc func(ctx context.Context, path, mimeType string) (string, error)

func (f transcriberFunc) TranscribeAudio(ctx context.Context, path, mimeType string) (string, error) {
	return f(ctx, path, mimeType)
}

type generatorFunc func(ctx context.Context, transcript string) (*models.GeneratedQuiz, error)

func (f generatorFunc) GenerateQuiz(ctx context.Context, transcript string) (*models.GeneratedQuiz, error) {
	return f(ctx, transcript)
}

type writerFunc func(ctx context.Context, quiz *models.Quiz, questions []models.GeneratedQuestion) error

func (f writerFunc) CreateWithQuestions(ctx context.Context, quiz *models.Quiz, questions []models.GeneratedQuestion) error {
	return f(ctx, quiz, questions)
}

func tenQuestionQuiz() *models.GeneratedQuiz {
	quiz := &models.GeneratedQuiz{Title: "Greetings", Description: "A quiz about greetings."}
	for i := 0; i < 10; i++ {
		quiz.Questions = append(quiz.Questions, models.GeneratedQuestion{
			QuestionTitle:   "What was said?",
			QuestionOptions: []string{"Hello world", "Goodbye", "Hi there", "Nothing"},
			Answer:          "Hello world",
		})
	}
	return quiz
}

// writeArtifact returns an acquirer that drops a real file so cleanup
// behavior can be observed.
func writeArtifact(t *testing.T, dir string) (AudioAcquirer, *string) {
	t.Helper()
	var path string
	acquirer := acquirerFunc(func(ctx context.Context, identity models.VideoIdentity, runID uuid.UUID) (string, string, error) {
		path = filepath.Join(dir, identity.VideoID+"-"+runID.String()+".m4a")
		if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
			t.Fatalf("failed to write artifact: %v", err)
		}
		return path, "audio/mp4", nil
	})
	return acquirer, &path
}

func TestPipeline_Success(t *testing.T) {
	dir := t.TempDir()
	acquirer, artifactPath := writeArtifact(t, dir)

	var persisted []models.GeneratedQuestion
	pipeline := NewQuizPipeline(
		acquirer,
		transcriberFunc(func(ctx context.Context, path, mimeType string) (string, error) {
			if path != *artifactPath {
				t.Errorf("Transcriber got path %q, want %q", path, *artifactPath)
			}
			return "Hello world", nil
		}),
		generatorFunc(func(ctx context.Context, transcript string) (*models.GeneratedQuiz, error) {
			if transcript != "Hello world" {
				t.Errorf("Generator got transcript %q", transcript)
			}
			return tenQuestionQuiz(), nil
		}),
		writerFunc(func(ctx context.Context, quiz *models.Quiz, questions []models.GeneratedQuestion) error {
			persisted = questions
			quiz.ID = uuid.New()
			return nil
		}),
		StageTimeouts{},
	)

	userID := uuid.New()
	quiz, err := pipeline.CreateQuizFromURL(context.Background(), "https://youtu.be/XYZ", userID)
	if err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}

	if quiz.VideoURL != "https://www.youtube.com/watch?v=XYZ" {
		t.Errorf("Expected canonical video URL, got %q", quiz.VideoURL)
	}
	if quiz.UserID != userID {
		t.Errorf("Expected quiz owned by %s, got %s", userID, quiz.UserID)
	}
	if quiz.Title != "Greetings" {
		t.Errorf("Unexpected title %q", quiz.Title)
	}
	if len(persisted) != 10 {
		t.Errorf("Expected 10 questions persisted, got %d", len(persisted))
	}

	if _, err := os.Stat(*artifactPath); !os.IsNotExist(err) {
		t.Error("Expected audio artifact to be removed after a successful run")
	}
}

func TestPipeline_InvalidURLShortCircuits(t *testing.T) {
	acquired := false
	pipeline := NewQuizPipeline(
		acquirerFunc(func(ctx context.Context, identity models.VideoIdentity, runID uuid.UUID) (string, string, error) {
			acquired = true
			return "", "", nil
		}),
		nil, nil, nil,
		StageTimeouts{},
	)

	_, err := pipeline.CreateQuizFromURL(context.Background(), "https://vimeo.com/123", uuid.New())
	if err == nil {
		t.Fatal("Expected error for unrecognized host")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("Expected *ValidationError, got %T", err)
	}
	if acquired {
		t.Error("Acquirer must not run for an invalid URL")
	}
}

func TestPipeline_AcquisitionFailureShortCircuits(t *testing.T) {
	depErr := &DependencyError{Message: "video unavailable"}
	transcribed := false

	pipeline := NewQuizPipeline(
		acquirerFunc(func(ctx context.Context, identity models.VideoIdentity, runID uuid.UUID) (string, string, error) {
			return "", "", depErr
		}),
		transcriberFunc(func(ctx context.Context, path, mimeType string) (string, error) {
			transcribed = true
			return "", nil
		}),
		nil, nil,
		StageTimeouts{},
	)

	_, err := pipeline.CreateQuizFromURL(context.Background(), "https://youtu.be/XYZ", uuid.New())
	if !errors.Is(err, depErr) {
		t.Fatalf("Expected acquisition error propagated unchanged, got %v", err)
	}
	if transcribed {
		t.Error("Transcriber must not run after a failed download")
	}
}

func TestPipeline_TranscriptionFailureRemovesArtifact(t *testing.T) {
	dir := t.TempDir()
	acquirer, artifactPath := writeArtifact(t, dir)
	generated := false

	pipeline := NewQuizPipeline(
		acquirer,
		transcriberFunc(func(ctx context.Context, path, mimeType string) (string, error) {
			return "", &DependencyError{Message: "transcription backend down"}
		}),
		generatorFunc(func(ctx context.Context, transcript string) (*models.GeneratedQuiz, error) {
			generated = true
			return nil, nil
		}),
		nil,
		StageTimeouts{},
	)

	_, err := pipeline.CreateQuizFromURL(context.Background(), "https://youtu.be/XYZ", uuid.New())
	if err == nil {
		t.Fatal("Expected transcription failure")
	}
	if generated {
		t.Error("Generator must not run after a failed transcription")
	}
	if _, err := os.Stat(*artifactPath); !os.IsNotExist(err) {
		t.Error("Expected audio artifact removed on the failure path")
	}
}

func TestPipeline_GenerationFailureSkipsPersistence(t *testing.T) {
	dir := t.TempDir()
	acquirer, artifactPath := writeArtifact(t, dir)
	persisted := false

	pipeline := NewQuizPipeline(
		acquirer,
		transcriberFunc(func(ctx context.Context, path, mimeType string) (string, error) {
			return "Hello world", nil
		}),
		generatorFunc(func(ctx context.Context, transcript string) (*models.GeneratedQuiz, error) {
			return nil, &ValidationError{Message: "model returned non-JSON output"}
		}),
		writerFunc(func(ctx context.Context, quiz *models.Quiz, questions []models.GeneratedQuestion) error {
			persisted = true
			return nil
		}),
		StageTimeouts{},
	)

	_, err := pipeline.CreateQuizFromURL(context.Background(), "https://youtu.be/XYZ", uuid.New())
	if err == nil {
		t.Fatal("Expected generation failure")
	}
	if persisted {
		t.Error("Nothing may be persisted when generation fails")
	}
	if _, err := os.Stat(*artifactPath); !os.IsNotExist(err) {
		t.Error("Expected audio artifact removed on the failure path")
	}
}

func TestPipeline_EmptyTranscriptIsValidInput(t *testing.T) {
	dir := t.TempDir()
	acquirer, _ := writeArtifact(t, dir)
	var generatorInput *string

	pipeline := NewQuizPipeline(
		acquirer,
		transcriberFunc(func(ctx context.Context, path, mimeType string) (string, error) {
			return "", nil
		}),
		generatorFunc(func(ctx context.Context, transcript string) (*models.GeneratedQuiz, error) {
			generatorInput = &transcript
			return tenQuestionQuiz(), nil
		}),
		writerFunc(func(ctx context.Context, quiz *models.Quiz, questions []models.GeneratedQuestion) error {
			return nil
		}),
		StageTimeouts{},
	)

	if _, err := pipeline.CreateQuizFromURL(context.Background(), "https://youtu.be/XYZ", uuid.New()); err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}
	if generatorInput == nil || *generatorInput != "" {
		t.Error("Expected the empty transcript to reach the generator")
	}
}

func TestPipeline_StageDeadlineSurfacesAsTimeout(t *testing.T) {
	pipeline := NewQuizPipeline(
		acquirerFunc(func(ctx context.Context, identity models.VideoIdentity, runID uuid.UUID) (string, string, error) {
			<-ctx.Done()
			return "", "", ctx.Err()
		}),
		nil, nil, nil,
		StageTimeouts{Download: 10 * time.Millisecond},
	)

	_, err := pipeline.CreateQuizFromURL(context.Background(), "https://youtu.be/XYZ", uuid.New())
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if _, ok := err.(*TimeoutError); !ok {
		t.Errorf("Expected *TimeoutError, got %T: %v", err, err)
	}
}
