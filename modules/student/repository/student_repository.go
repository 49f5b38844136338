package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kdvornichenko/weika-students/core/database"
	"github.com/kdvornichenko/weika-students/core/params"
	"github.com/kdvornichenko/weika-students/modules/student/entity"

	"github.com/google/uuid"
)

type StudentRepository interface {
	Create(ctx context.Context, student *entity.Student) (*entity.Student, error)
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*entity.Student, error)
	List(ctx context.Context, ownerID uuid.UUID, p params.QueryParams) ([]entity.Student, int, error)
	Update(ctx context.Context, student *entity.Student) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) (bool, error)
}

type studentRepository struct {
	db database.Database
}

func NewStudentRepository(db database.Database) StudentRepository {
	return &studentRepository{db: db}
}

const studentColumns = `
	id, owner_id, name, slug, description,
	lessons_amount, lessons_current, next_lesson_at,
	price_per_lesson, price_total,
	payment_last_at, payment_next_at,
	series_calendar_id, series_event_id,
	created_at, updated_at
`

func (r *studentRepository) Create(ctx context.Context, student *entity.Student) (*entity.Student, error) {
	query := `
		INSERT INTO students (
			owner_id, name, slug, description,
			lessons_amount, price_per_lesson, price_total
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		student.OwnerID, student.Name, student.Slug, student.Description,
		student.LessonsAmount, student.PricePerLesson, student.PriceTotal,
	).Scan(&student.ID, &student.CreatedAt, &student.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return student, nil
}

func (r *studentRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*entity.Student, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM students
		WHERE id = $1 AND owner_id = $2
	`, studentColumns)

	var student entity.Student
	err := r.db.GetContext(ctx, &student, query, id, ownerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepository) List(ctx context.Context, ownerID uuid.UUID, p params.QueryParams) ([]entity.Student, int, error) {
	where := "WHERE owner_id = $1"
	args := []any{ownerID}
	if search := strings.TrimSpace(p.Search); search != "" {
		where += " AND name ILIKE $2"
		args = append(args, "%"+search+"%")
	}

	var total int
	countQuery := "SELECT count(*) FROM students " + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	offset := (p.PageNumber - 1) * p.PageSize
	query := fmt.Sprintf(`
		SELECT %s FROM students
		%s
		ORDER BY name ASC
		LIMIT %d OFFSET %d
	`, studentColumns, where, p.PageSize, offset)

	students := []entity.Student{}
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, err
	}
	return students, total, nil
}

func (r *studentRepository) Update(ctx context.Context, student *entity.Student) error {
	query := `
		UPDATE students SET
			name = $1,
			description = $2,
			lessons_amount = $3,
			lessons_current = $4,
			next_lesson_at = $5,
			price_per_lesson = $6,
			price_total = $7,
			payment_last_at = $8,
			payment_next_at = $9,
			updated_at = now()
		WHERE id = $10 AND owner_id = $11
	`
	return r.db.ExecContext(ctx, query,
		student.Name, student.Description,
		student.LessonsAmount, student.LessonsCurrent, student.NextLessonAt,
		student.PricePerLesson, student.PriceTotal,
		student.PaymentLastAt, student.PaymentNextAt,
		student.ID, student.OwnerID,
	)
}

func (r *studentRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) (bool, error) {
	query := `DELETE FROM students WHERE id = $1 AND owner_id = $2 RETURNING id`
	var deleted uuid.UUID
	err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(&deleted)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
