package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"quizly-backend/internal/models"
)

type QuizRepo struct {
	pool DB
}

func NewQuizRepo(pool DB) *QuizRepo {
	return &QuizRepo{pool: pool}
}

// CreateWithQuestions persists a quiz and its questions in a single
// transaction. Input is trusted: the generator has already validated
// the shape. Either all rows commit or none do, so a quiz with zero
// questions is never observable.
func (r *QuizRepo) CreateWithQuestions(ctx context.Context, quiz *models.Quiz, questions []models.GeneratedQuestion) error {
	quiz.ID = uuid.New()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO quizzes (id, user_id, title, description, video_url)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		quiz.ID, quiz.UserID, quiz.Title, quiz.Description, quiz.VideoURL,
	).Scan(&quiz.CreatedAt, &quiz.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert quiz: %w", err)
	}

	quiz.Questions = make([]models.Question, len(questions))
	for i, gq := range questions {
		q := models.Question{
			ID:              uuid.New(),
			QuizID:          quiz.ID,
			Position:        i,
			QuestionTitle:   gq.QuestionTitle,
			QuestionOptions: gq.QuestionOptions,
			Answer:          gq.Answer,
		}

		optionsJSON, err := json.Marshal(q.QuestionOptions)
		if err != nil {
			return fmt.Errorf("failed to encode question options: %w", err)
		}

		// position carries the generation order; created_at cannot,
		// because NOW() is the transaction timestamp and identical for
		// every row written here.
		err = tx.QueryRow(ctx,
			`INSERT INTO questions (id, quiz_id, position, question_title, question_options, answer)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING created_at, updated_at`,
			q.ID, q.QuizID, q.Position, q.QuestionTitle, optionsJSON, q.Answer,
		).Scan(&q.CreatedAt, &q.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert question: %w", err)
		}

		quiz.Questions[i] = q
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit quiz: %w", err)
	}
	return nil
}

func (r *QuizRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	quiz := &models.Quiz{}
	query := `SELECT id, user_id, title, description, video_url, created_at, updated_at
		FROM quizzes WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&quiz.ID, &quiz.UserID, &quiz.Title, &quiz.Description, &quiz.VideoURL,
		&quiz.CreatedAt, &quiz.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	quiz.Questions, err = r.questionsForQuiz(ctx, quiz.ID)
	if err != nil {
		return nil, err
	}
	return quiz, nil
}

// ListByUser returns the caller's quizzes, newest first, each with its
// questions nested.
func (r *QuizRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Quiz, error) {
	query := `SELECT id, user_id, title, description, video_url, created_at, updated_at
		FROM quizzes WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []*models.Quiz
	for rows.Next() {
		quiz := &models.Quiz{}
		err := rows.Scan(
			&quiz.ID, &quiz.UserID, &quiz.Title, &quiz.Description, &quiz.VideoURL,
			&quiz.CreatedAt, &quiz.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, quiz)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, quiz := range quizzes {
		quiz.Questions, err = r.questionsForQuiz(ctx, quiz.ID)
		if err != nil {
			return nil, err
		}
	}
	return quizzes, nil
}

// Update writes title/description changes; the question list is never
// touched here.
func (r *QuizRepo) Update(ctx context.Context, quiz *models.Quiz) error {
	return r.pool.QueryRow(ctx,
		`UPDATE quizzes SET title = $1, description = $2, updated_at = NOW()
		 WHERE id = $3 RETURNING updated_at`,
		quiz.Title, quiz.Description, quiz.ID,
	).Scan(&quiz.UpdatedAt)
}

// Delete removes the quiz; its questions go with it via the foreign-key
// cascade.
func (r *QuizRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM quizzes WHERE id = $1", id)
	return err
}

func (r *QuizRepo) questionsForQuiz(ctx context.Context, quizID uuid.UUID) ([]models.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, position, question_title, question_options, answer, created_at, updated_at
		 FROM questions WHERE quiz_id = $1 ORDER BY position`,
		quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []models.Question{}
	for rows.Next() {
		var q models.Question
		var optionsJSON []byte
		err := rows.Scan(&q.ID, &q.QuizID, &q.Position, &q.QuestionTitle, &optionsJSON, &q.Answer, &q.CreatedAt, &q.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(optionsJSON, &q.QuestionOptions); err != nil {
			return nil, fmt.Errorf("failed to decode question options: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
