package dto

import "time"

type CreateStudentRequest struct {
	Name           string `json:"name" validate:"required"`
	Description    string `json:"description"`
	LessonsAmount  int    `json:"lessons_amount"`
	PricePerLesson int    `json:"price_per_lesson"`
}

type UpdateStudentRequest struct {
	Name           *string    `json:"name,omitempty"`
	Description    *string    `json:"description,omitempty"`
	LessonsAmount  *int       `json:"lessons_amount,omitempty"`
	LessonsCurrent *int       `json:"lessons_current,omitempty"`
	NextLessonAt   *time.Time `json:"next_lesson_at,omitempty"`
	PricePerLesson *int       `json:"price_per_lesson,omitempty"`
	PaymentLastAt  *time.Time `json:"payment_last_at,omitempty"`
	PaymentNextAt  *time.Time `json:"payment_next_at,omitempty"`
}

type StudentResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug"`
	Description    string     `json:"description,omitempty"`
	LessonsAmount  int        `json:"lessons_amount"`
	LessonsCurrent int        `json:"lessons_current"`
	LessonsLeft    int        `json:"lessons_left"`
	NextLessonAt   *time.Time `json:"next_lesson_at,omitempty"`
	PricePerLesson int        `json:"price_per_lesson"`
	PriceTotal     int        `json:"price_total"`
	PaymentLastAt  *time.Time `json:"payment_last_at,omitempty"`
	PaymentNextAt  *time.Time `json:"payment_next_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type PaginatedStudents struct {
	Items      []StudentResponse `json:"items"`
	TotalItems int               `json:"total_items"`
	PageNumber int               `json:"page_number"`
	PageSize   int               `json:"page_size"`
}
