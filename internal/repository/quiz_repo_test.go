package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"quizly-backend/internal/models"
)

func generatedQuestions(n int) []models.GeneratedQuestion {
	questions := make([]models.GeneratedQuestion, n)
	for i := range questions {
		questions[i] = models.GeneratedQuestion{
			QuestionTitle:   fmt.Sprintf("Question %d", i+1),
			QuestionOptions: []string{"A", "B", "C", "D"},
			Answer:          "A",
		}
	}
	return questions
}

func timestampRows(now time.Time) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now)
}

func TestCreateWithQuestionsAssignsPositions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	userID := uuid.New()
	questions := generatedQuestions(3)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO quizzes").
		WithArgs(pgxmock.AnyArg(), userID, "Go Basics", "A quiz.", "https://www.youtube.com/watch?v=abc123").
		WillReturnRows(timestampRows(now))
	// Each question row must carry its slice index as position; the
	// shared transaction timestamp cannot encode order.
	for i, q := range questions {
		mock.ExpectQuery("INSERT INTO questions").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), i, q.QuestionTitle, pgxmock.AnyArg(), q.Answer).
			WillReturnRows(timestampRows(now))
	}
	mock.ExpectCommit()

	repo := NewQuizRepo(mock)
	quiz := &models.Quiz{
		UserID:      userID,
		Title:       "Go Basics",
		Description: "A quiz.",
		VideoURL:    "https://www.youtube.com/watch?v=abc123",
	}
	if err := repo.CreateWithQuestions(context.Background(), quiz, questions); err != nil {
		t.Fatalf("CreateWithQuestions failed: %v", err)
	}

	for i, q := range quiz.Questions {
		if q.Position != i {
			t.Errorf("Question %d has position %d", i, q.Position)
		}
		if q.QuestionTitle != questions[i].QuestionTitle {
			t.Errorf("Question %d title %q does not match input order", i, q.QuestionTitle)
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestCreateWithQuestionsRollsBackOnFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	questions := generatedQuestions(2)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO quizzes").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(timestampRows(now))
	mock.ExpectQuery("INSERT INTO questions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(timestampRows(now))
	mock.ExpectQuery("INSERT INTO questions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	repo := NewQuizRepo(mock)
	quiz := &models.Quiz{UserID: uuid.New(), Title: "Go Basics", VideoURL: "https://www.youtube.com/watch?v=abc123"}

	if err := repo.CreateWithQuestions(context.Background(), quiz, questions); err == nil {
		t.Fatal("Expected error when a question insert fails")
	}

	// Rollback expected, commit never: a quiz row must not survive a
	// mid-write failure.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestGetByIDReadsQuestionsInPositionOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	quizID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM quizzes WHERE id").
		WithArgs(quizID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "title", "description", "video_url", "created_at", "updated_at"}).
			AddRow(quizID, uuid.New(), "Go Basics", "A quiz.", "https://www.youtube.com/watch?v=abc123", now, now))
	mock.ExpectQuery("ORDER BY position").
		WithArgs(quizID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "quiz_id", "position", "question_title", "question_options", "answer", "created_at", "updated_at"}).
			AddRow(uuid.New(), quizID, 0, "Question 1", []byte(`["A","B","C","D"]`), "A", now, now).
			AddRow(uuid.New(), quizID, 1, "Question 2", []byte(`["A","B","C","D"]`), "B", now, now))

	repo := NewQuizRepo(mock)
	quiz, err := repo.GetByID(context.Background(), quizID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if len(quiz.Questions) != 2 {
		t.Fatalf("Expected 2 questions, got %d", len(quiz.Questions))
	}
	for i, q := range quiz.Questions {
		if q.Position != i {
			t.Errorf("Question %d has position %d", i, q.Position)
		}
	}
	if quiz.Questions[0].QuestionTitle != "Question 1" || quiz.Questions[1].QuestionTitle != "Question 2" {
		t.Error("Questions not returned in position order")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
