package services

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"quizly-backend/internal/models"
)

// AudioAcquirer resolves a canonical video URL to a local audio file.
type AudioAcquirer interface {
	DownloadAudio(ctx context.Context, identity models.VideoIdentity, runID uuid.UUID) (path, mimeType string, err error)
}

// Transcriber turns a local audio file into plain text.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, path, mimeType string) (string, error)
}

// QuizGenerator turns a transcript into a validated quiz.
type QuizGenerator interface {
	GenerateQuiz(ctx context.Context, transcript string) (*models.GeneratedQuiz, error)
}

// QuizWriter persists a quiz and its questions atomically.
type QuizWriter interface {
	CreateWithQuestions(ctx context.Context, quiz *models.Quiz, questions []models.GeneratedQuestion) error
}

// StageTimeouts bounds each blocking external call. A zero value means
// no extra deadline beyond the request context.
type StageTimeouts struct {
	Download   time.Duration
	Transcribe time.Duration
	Generate   time.Duration
}

// QuizPipeline runs resolve → download → transcribe → generate →
// persist for one (url, user) request, strictly in order, failing fast
// on the first broken stage. No stage is retried.
type QuizPipeline struct {
	acquirer   AudioAcquirer
	transcribe Transcriber
	generator  QuizGenerator
	quizzes    QuizWriter
	timeouts   StageTimeouts
}

func NewQuizPipeline(acquirer AudioAcquirer, transcriber Transcriber, generator QuizGenerator, quizzes QuizWriter, timeouts StageTimeouts) *QuizPipeline {
	return &QuizPipeline{
		acquirer:   acquirer,
		transcribe: transcriber,
		generator:  generator,
		quizzes:    quizzes,
		timeouts:   timeouts,
	}
}

func (p *QuizPipeline) CreateQuizFromURL(ctx context.Context, rawURL string, userID uuid.UUID) (*models.Quiz, error) {
	identity, err := ResolveVideoURL(rawURL)
	if err != nil {
		return nil, err
	}

	runID := uuid.New()

	audioPath, mimeType, err := p.downloadAudio(ctx, identity, runID)
	if err != nil {
		return nil, err
	}
	// The artifact is transient; remove it on every exit path.
	defer func() {
		if removeErr := os.Remove(audioPath); removeErr != nil && !os.IsNotExist(removeErr) {
			log.Printf("failed to remove audio artifact %s: %v", audioPath, removeErr)
		}
	}()

	transcript, err := p.transcribeAudio(ctx, audioPath, mimeType)
	if err != nil {
		return nil, err
	}

	generated, err := p.generateQuiz(ctx, transcript)
	if err != nil {
		return nil, err
	}

	quiz := &models.Quiz{
		UserID:      userID,
		Title:       generated.Title,
		Description: generated.Description,
		VideoURL:    identity.CanonicalURL,
	}
	if err := p.quizzes.CreateWithQuestions(ctx, quiz, generated.Questions); err != nil {
		return nil, err
	}

	return quiz, nil
}

func (p *QuizPipeline) downloadAudio(ctx context.Context, identity models.VideoIdentity, runID uuid.UUID) (string, string, error) {
	sctx, cancel := stageContext(ctx, p.timeouts.Download)
	defer cancel()

	path, mimeType, err := p.acquirer.DownloadAudio(sctx, identity, runID)
	if err != nil {
		return "", "", stageError("audio download", sctx, err)
	}
	return path, mimeType, nil
}

func (p *QuizPipeline) transcribeAudio(ctx context.Context, path, mimeType string) (string, error) {
	sctx, cancel := stageContext(ctx, p.timeouts.Transcribe)
	defer cancel()

	transcript, err := p.transcribe.TranscribeAudio(sctx, path, mimeType)
	if err != nil {
		return "", stageError("transcription", sctx, err)
	}
	return transcript, nil
}

func (p *QuizPipeline) generateQuiz(ctx context.Context, transcript string) (*models.GeneratedQuiz, error) {
	sctx, cancel := stageContext(ctx, p.timeouts.Generate)
	defer cancel()

	generated, err := p.generator.GenerateQuiz(sctx, transcript)
	if err != nil {
		return nil, stageError("quiz generation", sctx, err)
	}
	return generated, nil
}

func stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// stageError surfaces a blown stage deadline as a TimeoutError,
// distinct from other dependency failures; all other errors propagate
// unchanged.
func stageError(stage string, ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Message: stage + " timed out"}
	}
	return err
}
