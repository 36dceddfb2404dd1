package models

import "time"

// QuizAttempt is a user's single scored pass through a quiz. The unique index
// on (quiz_id, user_id) is the storage-level at-most-one-attempt guarantee;
// the row is immutable once the enclosing transaction commits, so there is no
// soft delete here.
type QuizAttempt struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	QuizID      uint      `json:"quiz_id" gorm:"not null;uniqueIndex:idx_attempts_quiz_user"`
	UserID      uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_attempts_quiz_user"`
	StartedAt   time.Time `json:"started_at" gorm:"not null"`
	SubmittedAt time.Time `json:"submitted_at" gorm:"not null"`
	Score       int       `json:"score" gorm:"not null;default:0"` // 0-100
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relationships
	Quiz    Quiz         `json:"quiz,omitempty"`
	User    User         `json:"user,omitempty"`
	Answers []UserAnswer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}
