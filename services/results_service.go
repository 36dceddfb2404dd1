package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quizdeck/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// resultsCacheTTL bounds how long an assembled view may lag behind later text
// edits; the scored content itself is immutable.
const resultsCacheTTL = 5 * time.Minute

type ResultsService struct {
	db    *gorm.DB
	redis *redis.Client
	log   *zap.Logger
}

func NewResultsService(db *gorm.DB, redisClient *redis.Client, log *zap.Logger) *ResultsService {
	return &ResultsService{db: db, redis: redisClient, log: log}
}

type ResultsView struct {
	QuizID         uint             `json:"quiz_id"`
	QuizTitle      string           `json:"quiz_title"`
	Score          int              `json:"score"`
	CorrectCount   int              `json:"correct_count"`
	TotalQuestions int              `json:"total_questions"`
	StartedAt      time.Time        `json:"started_at"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	ElapsedTime    string           `json:"elapsed_time"`
	Questions      []QuestionResult `json:"questions"`
}

type QuestionResult struct {
	QuestionID       uint           `json:"question_id"`
	Text             string         `json:"text"`
	Options          []OptionResult `json:"options"`
	Answered         bool           `json:"answered"`
	SelectedOptionID *uint          `json:"selected_option_id"`
	IsCorrect        bool           `json:"is_correct"`
}

type OptionResult struct {
	ID        uint   `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// GetResults rebuilds the per-question view of the user's attempt on a quiz.
// Questions and options the user answered are loaded unscoped, so rows
// soft-deleted by later edits still render exactly as attempted; questions
// added after the attempt render as unanswered.
func (s *ResultsService) GetResults(ctx context.Context, quizID uint, userID uint) (*ResultsView, error) {
	cacheKey := fmt.Sprintf("results:%d:%d", quizID, userID)
	if view := s.cachedView(ctx, cacheKey); view != nil {
		return view, nil
	}

	var attempt models.QuizAttempt
	err := s.db.Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Preload("Answers").
		First(&attempt).Error
	if err != nil {
		return nil, translateDBError("load attempt", err)
	}

	var quiz models.Quiz
	if err := s.db.Unscoped().First(&quiz, quizID).Error; err != nil {
		return nil, translateDBError("load quiz", err)
	}

	answersByQuestion := make(map[uint]*models.UserAnswer, len(attempt.Answers))
	answeredQuestionIDs := make([]uint, 0, len(attempt.Answers))
	selectedOptionIDs := make([]uint, 0, len(attempt.Answers))
	correctCount := 0
	for i := range attempt.Answers {
		a := &attempt.Answers[i]
		answersByQuestion[a.QuestionID] = a
		answeredQuestionIDs = append(answeredQuestionIDs, a.QuestionID)
		selectedOptionIDs = append(selectedOptionIDs, a.SelectedOptionID)
		if a.IsCorrect {
			correctCount++
		}
	}

	// Live questions plus any soft-deleted ones this attempt answered.
	// Answered questions keep their full option set even when later edits
	// soft-deleted rows, so the breakdown renders as attempted.
	var questions []models.Question
	err = s.db.Unscoped().
		Where("quiz_id = ?", quizID).
		Where("deleted_at IS NULL OR id IN ?", answeredQuestionIDs).
		Order("order_index").
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Unscoped().
				Where("deleted_at IS NULL OR question_id IN ? OR id IN ?", answeredQuestionIDs, selectedOptionIDs).
				Order("order_index")
		}).
		Find(&questions).Error
	if err != nil {
		return nil, translateDBError("load questions", err)
	}

	view := &ResultsView{
		QuizID:         quizID,
		QuizTitle:      quiz.Title,
		Score:          attempt.Score,
		CorrectCount:   correctCount,
		TotalQuestions: len(attempt.Answers),
		StartedAt:      attempt.StartedAt,
		SubmittedAt:    attempt.SubmittedAt,
		ElapsedTime:    formatElapsed(attempt.SubmittedAt.Sub(attempt.StartedAt)),
		Questions:      make([]QuestionResult, 0, len(questions)),
	}

	for i := range questions {
		q := &questions[i]
		result := QuestionResult{
			QuestionID: q.ID,
			Text:       q.Text,
			Options:    make([]OptionResult, 0, len(q.Options)),
		}
		for _, o := range q.Options {
			result.Options = append(result.Options, OptionResult{
				ID:        o.ID,
				Text:      o.Text,
				IsCorrect: o.IsCorrect,
			})
		}
		if answer, ok := answersByQuestion[q.ID]; ok {
			selected := answer.SelectedOptionID
			result.Answered = true
			result.SelectedOptionID = &selected
			result.IsCorrect = answer.IsCorrect
		}
		view.Questions = append(view.Questions, result)
	}

	s.storeView(ctx, cacheKey, view)
	return view, nil
}

func (s *ResultsService) cachedView(ctx context.Context, key string) *ResultsView {
	if s.redis == nil {
		return nil
	}
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("results cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	var view ResultsView
	if err := json.Unmarshal(data, &view); err != nil {
		s.log.Warn("results cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &view
}

func (s *ResultsService) storeView(ctx context.Context, key string, view *ResultsView) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(view)
	if err != nil {
		s.log.Warn("results cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.redis.Set(ctx, key, data, resultsCacheTTL).Err(); err != nil {
		s.log.Warn("results cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%dm %02ds", total/60, total%60)
}
