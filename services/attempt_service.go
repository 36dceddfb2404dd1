package services

import (
	"math"
	"time"

	"quizdeck/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AttemptService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewAttemptService(db *gorm.DB, log *zap.Logger) *AttemptService {
	return &AttemptService{db: db, log: log}
}

type AnswerSubmission struct {
	QuestionID       uint `json:"question_id" binding:"required"`
	SelectedOptionID uint `json:"selected_option_id" binding:"required"`
}

type SubmitAttemptRequest struct {
	Answers     []AnswerSubmission `json:"answers" binding:"required"`
	StartedAt   time.Time          `json:"started_at" binding:"required"`
	SubmittedAt time.Time          `json:"submitted_at" binding:"required"`
}

type ScoreSummary struct {
	Score          int `json:"score"`
	CorrectCount   int `json:"correct_count"`
	TotalQuestions int `json:"total_questions"`
}

// SubmitAttempt validates the answer set against the live quiz definition,
// scores it, and persists the attempt with its answers in one transaction.
// Correctness is always read from the option rows, never from the caller.
//
// The in-transaction duplicate check is only a fast path; the unique index on
// (quiz_id, user_id) is what turns a racing second insert into ErrConflict.
func (s *AttemptService) SubmitAttempt(quizID uint, userID uint, req *SubmitAttemptRequest) (*ScoreSummary, error) {
	if req.StartedAt.IsZero() || req.SubmittedAt.IsZero() {
		return nil, validationErr("attempt.timestamps", "started_at and submitted_at are required")
	}
	if req.SubmittedAt.Before(req.StartedAt) {
		return nil, validationErr("attempt.timestamps", "submitted_at precedes started_at")
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var quiz models.Quiz
	if err := tx.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order_index")
		}).
		Preload("Questions.Options").
		First(&quiz, quizID).Error; err != nil {
		tx.Rollback()
		return nil, translateDBError("load quiz", err)
	}

	if len(quiz.Questions) == 0 {
		tx.Rollback()
		return nil, validationErr("quiz.questions", "quiz has no questions")
	}
	if len(req.Answers) != len(quiz.Questions) {
		tx.Rollback()
		return nil, validationErr("attempt.answers", "expected %d answers, got %d", len(quiz.Questions), len(req.Answers))
	}

	var count int64
	if err := tx.Model(&models.QuizAttempt{}).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Count(&count).Error; err != nil {
		tx.Rollback()
		return nil, translateDBError("check attempt", err)
	}
	if count > 0 {
		tx.Rollback()
		return nil, ErrConflict
	}

	questions := make(map[uint]*models.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		questions[quiz.Questions[i].ID] = &quiz.Questions[i]
	}

	answered := make(map[uint]bool, len(req.Answers))
	correctCount := 0
	answers := make([]models.UserAnswer, 0, len(req.Answers))
	for _, sub := range req.Answers {
		question, ok := questions[sub.QuestionID]
		if !ok {
			tx.Rollback()
			return nil, validationErr("answer.question", "question %d does not belong to quiz %d", sub.QuestionID, quizID)
		}
		if answered[question.ID] {
			tx.Rollback()
			return nil, validationErr("answer.question", "duplicate answer for question %d", question.ID)
		}
		answered[question.ID] = true

		var selected *models.Option
		for i := range question.Options {
			if question.Options[i].ID == sub.SelectedOptionID {
				selected = &question.Options[i]
				break
			}
		}
		if selected == nil {
			tx.Rollback()
			return nil, validationErr("answer.option", "option %d does not belong to question %d", sub.SelectedOptionID, question.ID)
		}

		if selected.IsCorrect {
			correctCount++
		}
		answers = append(answers, models.UserAnswer{
			QuestionID:       question.ID,
			SelectedOptionID: selected.ID,
			IsCorrect:        selected.IsCorrect,
			AnsweredAt:       req.SubmittedAt,
		})
	}

	attempt := models.QuizAttempt{
		QuizID:      quizID,
		UserID:      userID,
		StartedAt:   req.StartedAt,
		SubmittedAt: req.SubmittedAt,
		Score:       0,
	}
	if err := tx.Create(&attempt).Error; err != nil {
		tx.Rollback()
		return nil, translateDBError("create attempt", err)
	}

	for i := range answers {
		answers[i].AttemptID = attempt.ID
	}
	if err := tx.Create(&answers).Error; err != nil {
		tx.Rollback()
		return nil, translateDBError("create answers", err)
	}

	total := len(quiz.Questions)
	score := int(math.Round(float64(correctCount) * 100 / float64(total)))
	if err := tx.Model(&models.QuizAttempt{}).
		Where("id = ?", attempt.ID).
		Update("score", score).Error; err != nil {
		tx.Rollback()
		return nil, translateDBError("update score", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, translateDBError("commit attempt", err)
	}

	s.log.Info("attempt submitted",
		zap.Uint("quiz_id", quizID),
		zap.Uint("user_id", userID),
		zap.Int("score", score),
		zap.Int("correct", correctCount),
		zap.Int("total", total))

	return &ScoreSummary{Score: score, CorrectCount: correctCount, TotalQuestions: total}, nil
}
