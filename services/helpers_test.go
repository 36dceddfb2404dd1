package services_test

import (
	"path/filepath"
	"testing"

	"quizdeck/models"
	"quizdeck/services"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a file-backed SQLite database in the test's temp dir. WAL
// plus a busy timeout lets the concurrent-submission tests run two real
// transactions against it, and TranslateError keeps unique-index violations
// surfacing as gorm.ErrDuplicatedKey like the Postgres dialector does.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "quizdeck.db") +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Quiz{},
		&models.Question{},
		&models.Option{},
		&models.QuizAttempt{},
		&models.UserAnswer{},
	))
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) uint {
	t.Helper()
	user := models.User{Email: email, Name: "Test User", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

// twoQuestionTree is the canonical authoring payload: two questions with four
// options each, the first option of Q1 and the second option of Q2 correct.
func twoQuestionTree() *services.QuizTreeRequest {
	return &services.QuizTreeRequest{
		Title:       "Capitals",
		Description: "European capitals",
		Tags:        []string{"geography", "easy"},
		Status:      models.QuizStatusActive,
		Questions: []services.QuestionNodeRequest{
			{
				Text:  "Capital of France?",
				Order: 0,
				Options: []services.OptionNodeRequest{
					{Text: "Paris", IsCorrect: true, Order: 0},
					{Text: "Lyon", Order: 1},
					{Text: "Nice", Order: 2},
					{Text: "Lille", Order: 3},
				},
			},
			{
				Text:  "Capital of Spain?",
				Order: 1,
				Options: []services.OptionNodeRequest{
					{Text: "Barcelona", Order: 0},
					{Text: "Madrid", IsCorrect: true, Order: 1},
					{Text: "Seville", Order: 2},
					{Text: "Valencia", Order: 3},
				},
			},
		},
	}
}

// treeFromQuiz rebuilds the desired-tree request from a persisted quiz, id
// for id, so reconciling it is a no-op.
func treeFromQuiz(quiz *models.Quiz) *services.QuizTreeRequest {
	req := &services.QuizTreeRequest{
		Title:       quiz.Title,
		Description: quiz.Description,
		Tags:        quiz.Tags,
		Status:      quiz.Status,
	}
	for _, q := range quiz.Questions {
		node := services.QuestionNodeRequest{ID: q.ID, Text: q.Text, Order: q.Order}
		for _, o := range q.Options {
			node.Options = append(node.Options, services.OptionNodeRequest{
				ID: o.ID, Text: o.Text, IsCorrect: o.IsCorrect, Order: o.Order,
			})
		}
		req.Questions = append(req.Questions, node)
	}
	return req
}

func newQuizService(db *gorm.DB) *services.QuizService {
	return services.NewQuizService(db, zap.NewNop())
}

func newAttemptService(db *gorm.DB) *services.AttemptService {
	return services.NewAttemptService(db, zap.NewNop())
}
