package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoIdentity is the canonical form of a YouTube URL. CanonicalURL is
// always rebuilt from VideoID, never copied from user input, so any two
// URL spellings of the same video map to one stored value.
type VideoIdentity struct {
	VideoID      string
	CanonicalURL string
}

// GeneratedQuiz is the validated output of the quiz generator and the
// only shape the persistence layer accepts. Nothing downstream sees raw
// model output.
type GeneratedQuiz struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Questions   []GeneratedQuestion `json:"questions"`
}

type GeneratedQuestion struct {
	QuestionTitle   string   `json:"question_title"`
	QuestionOptions []string `json:"question_options"`
	Answer          string   `json:"answer"`
}

type Quiz struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"-"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	VideoURL    string     `json:"video_url"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Questions   []Question `json:"questions"`
}

type Question struct {
	ID              uuid.UUID `json:"id"`
	QuizID          uuid.UUID `json:"-"`
	Position        int       `json:"-"`
	QuestionTitle   string    `json:"question_title"`
	QuestionOptions []string  `json:"question_options"`
	Answer          string    `json:"answer"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type QuizResponse struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	VideoURL    string             `json:"video_url"`
	Questions   []QuestionResponse `json:"questions"`
}

type QuestionResponse struct {
	ID              uuid.UUID  `json:"id"`
	QuestionTitle   string     `json:"question_title"`
	QuestionOptions []string   `json:"question_options"`
	Answer          string     `json:"answer"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// Response builds the API shape for a quiz. Question timestamps are
// included only on the createQuiz response, not on list/detail.
func (q *Quiz) Response(withQuestionTimestamps bool) QuizResponse {
	questions := make([]QuestionResponse, len(q.Questions))
	for i := range q.Questions {
		qu := &q.Questions[i]
		qr := QuestionResponse{
			ID:              qu.ID,
			QuestionTitle:   qu.QuestionTitle,
			QuestionOptions: qu.QuestionOptions,
			Answer:          qu.Answer,
		}
		if withQuestionTimestamps {
			created, updated := qu.CreatedAt, qu.UpdatedAt
			qr.CreatedAt = &created
			qr.UpdatedAt = &updated
		}
		questions[i] = qr
	}
	return QuizResponse{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
		VideoURL:    q.VideoURL,
		Questions:   questions,
	}
}

type CreateQuizRequest struct {
	URL string `json:"url"`
}

type UpdateQuizRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}
