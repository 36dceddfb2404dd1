package services

import (
	"strings"

	"quizdeck/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type QuizService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewQuizService(db *gorm.DB, log *zap.Logger) *QuizService {
	return &QuizService{db: db, log: log}
}

// QuizTreeRequest is the desired state of a whole quiz aggregate. Question and
// option nodes that carry an id are updates of the persisted node with that
// id; nodes without an id are inserts. Unknown ids are tolerated as inserts so
// clients may send placeholder ids for rows they created locally.
type QuizTreeRequest struct {
	Title       string                `json:"title" binding:"required"`
	Description string                `json:"description"`
	Tags        []string              `json:"tags"`
	Status      string                `json:"status"`
	Version     int                   `json:"version"` // optional optimistic lock; 0 skips the check
	Questions   []QuestionNodeRequest `json:"questions" binding:"required,min=1,dive"`
}

type QuestionNodeRequest struct {
	ID      uint                `json:"id"`
	Text    string              `json:"text" binding:"required"`
	Order   int                 `json:"order"`
	Options []OptionNodeRequest `json:"options" binding:"required,min=2,dive"`
}

type OptionNodeRequest struct {
	ID        uint   `json:"id"`
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
	Order     int    `json:"order"`
}

// validateQuizTree is the single validating parse between loosely structured
// authoring payloads (manual or AI-origin) and the strict model. Every rule
// violation aborts the whole operation before anything is written.
func validateQuizTree(req *QuizTreeRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return validationErr("quiz.title", "title must not be empty")
	}
	switch req.Status {
	case "", models.QuizStatusDraft, models.QuizStatusActive, models.QuizStatusInactive:
	default:
		return validationErr("quiz.status", "unknown status %q", req.Status)
	}
	if len(req.Questions) == 0 {
		return validationErr("quiz.questions", "quiz must have at least one question")
	}

	questionOrders := make(map[int]bool, len(req.Questions))
	for _, q := range req.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return validationErr("question.text", "question text must not be empty")
		}
		if questionOrders[q.Order] {
			return validationErr("question.order", "duplicate question order index %d", q.Order)
		}
		questionOrders[q.Order] = true

		if len(q.Options) < 2 {
			return validationErr("question.options", "question %q must have at least 2 options", q.Text)
		}
		correct := 0
		optionOrders := make(map[int]bool, len(q.Options))
		for _, o := range q.Options {
			if strings.TrimSpace(o.Text) == "" {
				return validationErr("option.text", "option text must not be empty")
			}
			if optionOrders[o.Order] {
				return validationErr("option.order", "duplicate option order index %d in question %q", o.Order, q.Text)
			}
			optionOrders[o.Order] = true
			if o.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return validationErr("question.correct_option", "question %q must have exactly one correct option, has %d", q.Text, correct)
		}
	}
	return nil
}

func (s *QuizService) CreateQuiz(ownerID uint, req *QuizTreeRequest) (*models.Quiz, error) {
	if err := validateQuizTree(req); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.QuizStatusDraft
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	quiz := models.Quiz{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Status:      status,
		UserID:      ownerID,
		Version:     1,
	}
	if err := tx.Create(&quiz).Error; err != nil {
		tx.Rollback()
		return nil, translateDBError("create quiz", err)
	}

	for _, qReq := range req.Questions {
		if err := insertQuestion(tx, quiz.ID, qReq); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, translateDBError("commit quiz", err)
	}

	s.log.Info("quiz created",
		zap.Uint("quiz_id", quiz.ID),
		zap.Uint("owner_id", ownerID),
		zap.Int("questions", len(req.Questions)))

	return s.GetQuizByID(quiz.ID, ownerID)
}

// ReconcileQuiz makes the persisted aggregate match the desired tree:
// questions and options present by id are updated in place, nodes without a
// known id are inserted, and persisted nodes absent from the desired tree are
// deleted. The whole diff runs in one transaction; any failure leaves the
// prior tree untouched.
func (s *QuizService) ReconcileQuiz(quizID uint, ownerID uint, req *QuizTreeRequest) (*models.Quiz, error) {
	if err := validateQuizTree(req); err != nil {
		return nil, err
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var existing models.Quiz
	if err := tx.Where("id = ? AND user_id = ?", quizID, ownerID).
		Preload("Questions").
		Preload("Questions.Options").
		First(&existing).Error; err != nil {
		tx.Rollback()
		return nil, translateDBError("load quiz", err)
	}

	// Optimistic lock: a client that read version N must still be editing
	// version N. The guarded update also covers two reconciliations racing
	// past each other's read inside their own transactions.
	expectedVersion := existing.Version
	if req.Version != 0 {
		expectedVersion = req.Version
	}

	status := req.Status
	if status == "" {
		status = existing.Status
	}

	res := tx.Model(&models.Quiz{}).
		Where("id = ? AND version = ?", quizID, expectedVersion).
		Select("title", "description", "tags", "status", "version").
		Updates(models.Quiz{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			Status:      status,
			Version:     expectedVersion + 1,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, translateDBError("update quiz", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrConflict
	}

	existingQuestions := make(map[uint]*models.Question, len(existing.Questions))
	for i := range existing.Questions {
		existingQuestions[existing.Questions[i].ID] = &existing.Questions[i]
	}

	kept := make(map[uint]bool, len(req.Questions))
	for _, qReq := range req.Questions {
		if q, ok := existingQuestions[qReq.ID]; qReq.ID != 0 && ok {
			kept[q.ID] = true
			err := tx.Model(&models.Question{}).
				Where("id = ?", q.ID).
				Updates(map[string]any{"text": qReq.Text, "order_index": qReq.Order}).Error
			if err != nil {
				tx.Rollback()
				return nil, translateDBError("update question", err)
			}
			if err := reconcileOptions(tx, q, qReq.Options); err != nil {
				tx.Rollback()
				return nil, err
			}
		} else {
			if err := insertQuestion(tx, quizID, qReq); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	var removed []uint
	for id := range existingQuestions {
		if !kept[id] {
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		// Soft delete so answers of past attempts stay resolvable.
		if err := tx.Where("question_id IN ?", removed).Delete(&models.Option{}).Error; err != nil {
			tx.Rollback()
			return nil, translateDBError("delete options", err)
		}
		if err := tx.Where("id IN ?", removed).Delete(&models.Question{}).Error; err != nil {
			tx.Rollback()
			return nil, translateDBError("delete questions", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, translateDBError("commit reconcile", err)
	}

	s.log.Info("quiz reconciled",
		zap.Uint("quiz_id", quizID),
		zap.Uint("owner_id", ownerID),
		zap.Int("questions", len(req.Questions)),
		zap.Int("removed_questions", len(removed)))

	return s.GetQuizByID(quizID, ownerID)
}

// insertQuestion creates a question and all of its options. Options of a
// brand-new question are always inserts; client-supplied option ids are
// ignored.
func insertQuestion(tx *gorm.DB, quizID uint, qReq QuestionNodeRequest) error {
	question := models.Question{
		QuizID: quizID,
		Text:   qReq.Text,
		Order:  qReq.Order,
	}
	if err := tx.Create(&question).Error; err != nil {
		return translateDBError("create question", err)
	}
	for _, oReq := range qReq.Options {
		option := models.Option{
			QuestionID: question.ID,
			Text:       oReq.Text,
			IsCorrect:  oReq.IsCorrect,
			Order:      oReq.Order,
		}
		if err := tx.Create(&option).Error; err != nil {
			return translateDBError("create option", err)
		}
	}
	return nil
}

// reconcileOptions applies the same partition rule as the question level:
// update by id, insert without id, delete what the desired set no longer
// names.
func reconcileOptions(tx *gorm.DB, existing *models.Question, desired []OptionNodeRequest) error {
	existingOptions := make(map[uint]*models.Option, len(existing.Options))
	for i := range existing.Options {
		existingOptions[existing.Options[i].ID] = &existing.Options[i]
	}

	kept := make(map[uint]bool, len(desired))
	for _, oReq := range desired {
		if o, ok := existingOptions[oReq.ID]; oReq.ID != 0 && ok {
			kept[o.ID] = true
			err := tx.Model(&models.Option{}).
				Where("id = ?", o.ID).
				Updates(map[string]any{"text": oReq.Text, "is_correct": oReq.IsCorrect, "order_index": oReq.Order}).Error
			if err != nil {
				return translateDBError("update option", err)
			}
		} else {
			option := models.Option{
				QuestionID: existing.ID,
				Text:       oReq.Text,
				IsCorrect:  oReq.IsCorrect,
				Order:      oReq.Order,
			}
			if err := tx.Create(&option).Error; err != nil {
				return translateDBError("create option", err)
			}
		}
	}

	var removed []uint
	for id := range existingOptions {
		if !kept[id] {
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		if err := tx.Where("id IN ?", removed).Delete(&models.Option{}).Error; err != nil {
			return translateDBError("delete options", err)
		}
	}
	return nil
}

func (s *QuizService) GetUserQuizzes(ownerID uint) ([]models.Quiz, error) {
	var quizzes []models.Quiz
	err := s.db.Where("user_id = ?", ownerID).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order_index")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("options.order_index")
		}).
		Order("created_at DESC").
		Find(&quizzes).Error
	if err != nil {
		return nil, translateDBError("list quizzes", err)
	}
	return quizzes, nil
}

func (s *QuizService) GetQuizByID(quizID uint, ownerID uint) (*models.Quiz, error) {
	var quiz models.Quiz
	err := s.db.Where("id = ? AND user_id = ?", quizID, ownerID).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order_index")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("options.order_index")
		}).
		First(&quiz).Error
	if err != nil {
		return nil, translateDBError("load quiz", err)
	}
	return &quiz, nil
}

func (s *QuizService) DeleteQuiz(quizID uint, ownerID uint) error {
	if _, err := s.GetQuizByID(quizID, ownerID); err != nil {
		return err
	}
	if err := s.db.Delete(&models.Quiz{}, quizID).Error; err != nil {
		return translateDBError("delete quiz", err)
	}
	return nil
}
