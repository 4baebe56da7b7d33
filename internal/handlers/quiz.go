package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"quizly-backend/internal/middleware"
	"quizly-backend/internal/models"
	"quizly-backend/internal/repository"
	"quizly-backend/internal/services"
)

// QuizCreator runs the full URL→quiz pipeline for one request.
type QuizCreator interface {
	CreateQuizFromURL(ctx context.Context, rawURL string, userID uuid.UUID) (*models.Quiz, error)
}

// QuizStore is the persistence surface the handler reads and mutates.
type QuizStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Quiz, error)
	Update(ctx context.Context, quiz *models.Quiz) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type QuizHandler struct {
	quizRepo QuizStore
	pipeline QuizCreator
}

func NewQuizHandler(quizRepo QuizStore, pipeline QuizCreator) *QuizHandler {
	return &QuizHandler{quizRepo: quizRepo, pipeline: pipeline}
}

// Create generates and persists a quiz from a YouTube URL. The body is
// JSON, accepted as application/json or as JSON carried in a
// text/plain body.
func (h *QuizHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreateQuizRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "url is required", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	quiz, err := h.pipeline.CreateQuizFromURL(r.Context(), req.URL, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, quiz.Response(true))
}

func (h *QuizHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	quizzes, err := h.quizRepo.ListByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	responses := make([]models.QuizResponse, 0, len(quizzes))
	for _, quiz := range quizzes {
		responses = append(responses, quiz.Response(false))
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.ownedQuiz(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, quiz.Response(false))
}

// Update applies partial title/description changes; the question list
// is left untouched.
func (h *QuizHandler) Update(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.ownedQuiz(w, r)
	if !ok {
		return
	}

	var req models.UpdateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}

	if err := h.quizRepo.Update(r.Context(), quiz); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, quiz.Response(false))
}

func (h *QuizHandler) Delete(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.ownedQuiz(w, r)
	if !ok {
		return
	}

	if err := h.quizRepo.Delete(r.Context(), quiz.ID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ownedQuiz resolves the {id} route param and enforces ownership. A
// missing row is 404; a row owned by another user is 403 — the two are
// never collapsed.
func (h *QuizHandler) ownedQuiz(w http.ResponseWriter, r *http.Request) (*models.Quiz, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Quiz not found", r))
		return nil, false
	}

	quiz, err := h.quizRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Quiz not found", r))
		} else {
			handleServiceError(w, r, err)
		}
		return nil, false
	}

	if quiz.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "You do not have permission to access this quiz.", r))
		return nil, false
	}

	return quiz, true
}

func decodeCreateQuizRequest(r *http.Request) (models.CreateQuizRequest, error) {
	var req models.CreateQuizRequest

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "text/plain") {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return req, err
		}
		return req, json.Unmarshal(raw, &req)
	}

	return req, json.NewDecoder(r.Body).Decode(&req)
}

var (
	_ QuizCreator = (*services.QuizPipeline)(nil)
	_ QuizStore   = (*repository.QuizRepo)(nil)
)
