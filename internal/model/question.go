package model

import (
	"github.com/google/uuid"
)

// Question is a single multiple-choice question as delivered to the agent.
// Immutable once loaded; the agent never sees the correct option.
type Question struct {
	ID           uuid.UUID         `json:"id"`
	QuestionText string            `json:"question_text"`
	Options      map[string]string `json:"options"`
	Marks        *float64          `json:"marks,omitempty"`
	OrderNum     int               `json:"order_num"`
}

// ExamPaper is the exam payload fetched from the backend at session start.
type ExamPaper struct {
	ExamID          uuid.UUID  `json:"exam_id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	Questions       []Question `json:"questions"`
}
