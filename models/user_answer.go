package models

import "time"

// UserAnswer records one answer of an attempt. IsCorrect is derived from the
// selected option at submission time and freezes the correctness judged then;
// later quiz edits never rewrite it.
type UserAnswer struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	AttemptID        uint      `json:"attempt_id" gorm:"not null;index"`
	QuestionID       uint      `json:"question_id" gorm:"not null"`
	SelectedOptionID uint      `json:"selected_option_id" gorm:"not null"`
	IsCorrect        bool      `json:"is_correct" gorm:"not null"`
	AnsweredAt       time.Time `json:"answered_at" gorm:"not null"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Relationships
	Attempt  QuizAttempt `json:"attempt,omitempty" gorm:"foreignKey:AttemptID"`
	Question Question    `json:"question,omitempty"`
	Option   Option      `json:"option,omitempty" gorm:"foreignKey:SelectedOptionID"`
}
