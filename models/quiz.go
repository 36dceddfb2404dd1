package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	QuizStatusDraft    = "DRAFT"
	QuizStatusActive   = "ACTIVE"
	QuizStatusInactive = "INACTIVE"
)

type Quiz struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Title       string         `json:"title" gorm:"not null"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags" gorm:"serializer:json"`
	Status      string         `json:"status" gorm:"not null;default:'DRAFT'"` // DRAFT, ACTIVE, INACTIVE
	UserID      uint           `json:"user_id" gorm:"not null"`
	Version     int            `json:"version" gorm:"not null;default:1"` // bumped on every reconcile
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	User      User          `json:"user,omitempty"`
	Questions []Question    `json:"questions,omitempty" gorm:"foreignKey:QuizID"`
	Attempts  []QuizAttempt `json:"attempts,omitempty" gorm:"foreignKey:QuizID"`
}
