package services_test

import (
	"sync"
	"testing"
	"time"

	"quizdeck/models"
	"quizdeck/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupQuiz(t *testing.T, db *gorm.DB) (*models.Quiz, uint) {
	t.Helper()
	owner := createUser(t, db, "owner@example.com")
	quiz, err := newQuizService(db).CreateQuiz(owner, twoQuestionTree())
	require.NoError(t, err)
	return quiz, owner
}

// answersFor selects, per question, the correct option when pickCorrect[i] is
// true and the first wrong one otherwise.
func answersFor(quiz *models.Quiz, pickCorrect []bool) []services.AnswerSubmission {
	answers := make([]services.AnswerSubmission, 0, len(quiz.Questions))
	for i, q := range quiz.Questions {
		var selected uint
		for _, o := range q.Options {
			if o.IsCorrect == pickCorrect[i] {
				selected = o.ID
				break
			}
		}
		answers = append(answers, services.AnswerSubmission{
			QuestionID:       q.ID,
			SelectedOptionID: selected,
		})
	}
	return answers
}

func submitRequest(answers []services.AnswerSubmission) *services.SubmitAttemptRequest {
	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return &services.SubmitAttemptRequest{
		Answers:     answers,
		StartedAt:   started,
		SubmittedAt: started.Add(2*time.Minute + 5*time.Second),
	}
}

func TestSubmitAttemptScoresHalfCorrect(t *testing.T) {
	db := newTestDB(t)
	quiz, _ := setupQuiz(t, db)
	taker := createUser(t, db, "taker@example.com")

	summary, err := newAttemptService(db).SubmitAttempt(quiz.ID, taker,
		submitRequest(answersFor(quiz, []bool{true, false})))
	require.NoError(t, err)

	assert.Equal(t, 50, summary.Score)
	assert.Equal(t, 1, summary.CorrectCount)
	assert.Equal(t, 2, summary.TotalQuestions)

	var attempt models.QuizAttempt
	require.NoError(t, db.Preload("Answers").
		Where("quiz_id = ? AND user_id = ?", quiz.ID, taker).
		First(&attempt).Error)
	assert.Equal(t, 50, attempt.Score)
	require.Len(t, attempt.Answers, 2)
}

func TestSubmitAttemptCorrectnessReadFromOptions(t *testing.T) {
	db := newTestDB(t)
	quiz, _ := setupQuiz(t, db)
	taker := createUser(t, db, "taker@example.com")

	summary, err := newAttemptService(db).SubmitAttempt(quiz.ID, taker,
		submitRequest(answersFor(quiz, []bool{true, true})))
	require.NoError(t, err)
	assert.Equal(t, 100, summary.Score)

	var answers []models.UserAnswer
	require.NoError(t, db.Order("id").Find(&answers).Error)
	require.Len(t, answers, 2)
	for _, a := range answers {
		var option models.Option
		require.NoError(t, db.First(&option, a.SelectedOptionID).Error)
		assert.Equal(t, option.IsCorrect, a.IsCorrect,
			"stored correctness must match the option row, not the caller")
	}
}

func TestSubmitAttemptRoundsHalfUp(t *testing.T) {
	db := newTestDB(t)
	owner := createUser(t, db, "owner@example.com")
	tree := twoQuestionTree()
	tree.Questions = append(tree.Questions, services.QuestionNodeRequest{
		Text:  "Capital of Germany?",
		Order: 2,
		Options: []services.OptionNodeRequest{
			{Text: "Berlin", IsCorrect: true, Order: 0},
			{Text: "Bonn", Order: 1},
		},
	})
	quiz, err := newQuizService(db).CreateQuiz(owner, tree)
	require.NoError(t, err)
	svc := newAttemptService(db)

	// 2/3 correct: 66.67 rounds up to 67.
	taker := createUser(t, db, "a@example.com")
	summary, err := svc.SubmitAttempt(quiz.ID, taker,
		submitRequest(answersFor(quiz, []bool{true, true, false})))
	require.NoError(t, err)
	assert.Equal(t, 67, summary.Score)

	// 1/3 correct: 33.33 rounds down to 33.
	taker2 := createUser(t, db, "b@example.com")
	summary, err = svc.SubmitAttempt(quiz.ID, taker2,
		submitRequest(answersFor(quiz, []bool{true, false, false})))
	require.NoError(t, err)
	assert.Equal(t, 33, summary.Score)
}

func TestSubmitAttemptDuplicateIsConflict(t *testing.T) {
	db := newTestDB(t)
	quiz, _ := setupQuiz(t, db)
	taker := createUser(t, db, "taker@example.com")
	svc := newAttemptService(db)

	_, err := svc.SubmitAttempt(quiz.ID, taker, submitRequest(answersFor(quiz, []bool{true, true})))
	require.NoError(t, err)

	_, err = svc.SubmitAttempt(quiz.ID, taker, submitRequest(answersFor(quiz, []bool{false, false})))
	require.ErrorIs(t, err, services.ErrConflict)

	var attempts, answers int64
	require.NoError(t, db.Model(&models.QuizAttempt{}).Count(&attempts).Error)
	require.NoError(t, db.Model(&models.UserAnswer{}).Count(&answers).Error)
	assert.EqualValues(t, 1, attempts)
	assert.EqualValues(t, 2, answers, "rejected attempt must write no answer rows")
}

func TestSubmitAttemptUniqueIndexIsTheGuarantee(t *testing.T) {
	db := newTestDB(t)
	quiz, _ := setupQuiz(t, db)
	taker := createUser(t, db, "taker@example.com")

	_, err := newAttemptService(db).SubmitAttempt(quiz.ID, taker,
		submitRequest(answersFor(quiz, []bool{true, true})))
	require.NoError(t, err)

	// A second insert that bypasses the in-transaction existence check must
	// still be rejected by the storage layer.
	dup := models.QuizAttempt{
		QuizID:      quiz.ID,
		UserID:      taker,
		StartedAt:   time.Now(),
		SubmittedAt: time.Now(),
	}
	err = db.Create(&dup).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestSubmitAttemptConcurrentDuplicate(t *testing.T) {
	db := newTestDB(t)
	quiz, _ := setupQuiz(t, db)
	taker := createUser(t, db, "taker@example.com")
	svc := newAttemptService(db)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SubmitAttempt(quiz.ID, taker,
				submitRequest(answersFor(quiz, []bool{true, false})))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, services.ErrConflict)
		}
	}
	assert.Equal(t, 1, successes, "exactly one of two racing submissions may win")

	var attempts, answers int64
	require.NoError(t, db.Model(&models.QuizAttempt{}).Count(&attempts).Error)
	require.NoError(t, db.Model(&models.UserAnswer{}).Count(&answers).Error)
	assert.EqualValues(t, 1, attempts)
	assert.EqualValues(t, 2, answers)
}

func TestSubmitAttemptValidation(t *testing.T) {
	db := newTestDB(t)
	quiz, _ := setupQuiz(t, db)
	taker := createUser(t, db, "taker@example.com")
	svc := newAttemptService(db)

	t.Run("submitted before started", func(t *testing.T) {
		req := submitRequest(answersFor(quiz, []bool{true, true}))
		req.SubmittedAt = req.StartedAt.Add(-time.Second)
		_, err := svc.SubmitAttempt(quiz.ID, taker, req)
		var validationErr *services.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "attempt.timestamps", validationErr.Rule)
	})

	t.Run("missing timestamps", func(t *testing.T) {
		req := submitRequest(answersFor(quiz, []bool{true, true}))
		req.StartedAt = time.Time{}
		_, err := svc.SubmitAttempt(quiz.ID, taker, req)
		var validationErr *services.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "attempt.timestamps", validationErr.Rule)
	})

	t.Run("quiz not found", func(t *testing.T) {
		_, err := svc.SubmitAttempt(99999, taker, submitRequest(answersFor(quiz, []bool{true, true})))
		require.ErrorIs(t, err, services.ErrNotFound)
	})

	t.Run("answer count mismatch", func(t *testing.T) {
		req := submitRequest(answersFor(quiz, []bool{true, true})[:1])
		_, err := svc.SubmitAttempt(quiz.ID, taker, req)
		var validationErr *services.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "attempt.answers", validationErr.Rule)
	})

	t.Run("duplicate question", func(t *testing.T) {
		answers := answersFor(quiz, []bool{true, true})
		answers[1] = answers[0]
		_, err := svc.SubmitAttempt(quiz.ID, taker, submitRequest(answers))
		var validationErr *services.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "answer.question", validationErr.Rule)
	})

	t.Run("foreign question", func(t *testing.T) {
		answers := answersFor(quiz, []bool{true, true})
		answers[1].QuestionID = 424242
		_, err := svc.SubmitAttempt(quiz.ID, taker, submitRequest(answers))
		var validationErr *services.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "answer.question", validationErr.Rule)
	})

	t.Run("option of another question", func(t *testing.T) {
		answers := answersFor(quiz, []bool{true, true})
		answers[0].SelectedOptionID = quiz.Questions[1].Options[0].ID
		_, err := svc.SubmitAttempt(quiz.ID, taker, submitRequest(answers))
		var validationErr *services.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "answer.option", validationErr.Rule)
	})

	t.Run("no partial writes", func(t *testing.T) {
		var attempts int64
		require.NoError(t, db.Model(&models.QuizAttempt{}).Count(&attempts).Error)
		assert.Zero(t, attempts)
	})
}

func TestSubmitAttemptEmptyQuizRejected(t *testing.T) {
	db := newTestDB(t)
	owner := createUser(t, db, "owner@example.com")
	taker := createUser(t, db, "taker@example.com")

	// Transient authoring state: a quiz row without questions.
	quiz := models.Quiz{Title: "Empty", UserID: owner, Status: models.QuizStatusDraft, Version: 1}
	require.NoError(t, db.Create(&quiz).Error)

	req := submitRequest(nil)
	_, err := newAttemptService(db).SubmitAttempt(quiz.ID, taker, req)
	var validationErr *services.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "quiz.questions", validationErr.Rule)
}
