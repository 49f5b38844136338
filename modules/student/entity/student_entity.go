package entity

import (
	"time"

	"github.com/kdvornichenko/weika-students/core/entity"
)

// Student is a tutor's student record together with its lesson counters and
// payment bookkeeping. The series_* columns hold the last known calendar
// series anchor for the student's weekly lesson; they are read and written by
// the calendar module.
type Student struct {
	entity.BaseEntity
	OwnerID     string  `db:"owner_id" json:"owner_id"`
	Name        string  `db:"name" json:"name"`
	Slug        string  `db:"slug" json:"slug"`
	Description *string `db:"description" json:"description,omitempty"`

	LessonsAmount  int        `db:"lessons_amount" json:"lessons_amount"`
	LessonsCurrent int        `db:"lessons_current" json:"lessons_current"`
	NextLessonAt   *time.Time `db:"next_lesson_at" json:"next_lesson_at,omitempty"`

	PricePerLesson int `db:"price_per_lesson" json:"price_per_lesson"`
	PriceTotal     int `db:"price_total" json:"price_total"`

	PaymentLastAt *time.Time `db:"payment_last_at" json:"payment_last_at,omitempty"`
	PaymentNextAt *time.Time `db:"payment_next_at" json:"payment_next_at,omitempty"`

	SeriesCalendarID *string `db:"series_calendar_id" json:"-"`
	SeriesEventID    *string `db:"series_event_id" json:"-"`
}

func (Student) TableName() string {
	return "students"
}
