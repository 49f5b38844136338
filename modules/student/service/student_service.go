package service

import (
	"context"

	"github.com/kdvornichenko/weika-students/core/constants"
	"github.com/kdvornichenko/weika-students/core/errors"
	"github.com/kdvornichenko/weika-students/core/logger"
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/core/params"
	"github.com/kdvornichenko/weika-students/core/queue"
	"github.com/kdvornichenko/weika-students/modules/calendar/task"
	"github.com/kdvornichenko/weika-students/modules/student/dto"
	"github.com/kdvornichenko/weika-students/modules/student/entity"
	"github.com/kdvornichenko/weika-students/modules/student/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type StudentService interface {
	Create(ctx context.Context, identity middleware.Identity, req *dto.CreateStudentRequest) (*dto.StudentResponse, *errors.AppError)
	Get(ctx context.Context, identity middleware.Identity, id uuid.UUID) (*dto.StudentResponse, *errors.AppError)
	List(ctx context.Context, identity middleware.Identity, p params.QueryParams) (*dto.PaginatedStudents, *errors.AppError)
	Update(ctx context.Context, identity middleware.Identity, id uuid.UUID, req *dto.UpdateStudentRequest) (*dto.StudentResponse, *errors.AppError)
	Delete(ctx context.Context, identity middleware.Identity, id uuid.UUID) *errors.AppError
}

type studentService struct {
	repo  repository.StudentRepository
	queue *queue.Queue
}

func NewStudentService(repo repository.StudentRepository, q *queue.Queue) StudentService {
	return &studentService{repo: repo, queue: q}
}

func (s *studentService) Create(ctx context.Context, identity middleware.Identity, req *dto.CreateStudentRequest) (*dto.StudentResponse, *errors.AppError) {
	student := &entity.Student{
		OwnerID:        identity.UserID.String(),
		Name:           req.Name,
		Slug:           slug.Make(req.Name),
		LessonsAmount:  req.LessonsAmount,
		PricePerLesson: req.PricePerLesson,
		PriceTotal:     req.LessonsAmount * req.PricePerLesson,
	}
	if req.Description != "" {
		student.Description = &req.Description
	}

	created, err := s.repo.Create(ctx, student)
	if err != nil {
		logger.Error("StudentService:Create:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to create student", err)
	}
	return toResponse(created), nil
}

func (s *studentService) Get(ctx context.Context, identity middleware.Identity, id uuid.UUID) (*dto.StudentResponse, *errors.AppError) {
	student, err := s.repo.GetByID(ctx, identity.UserID, id)
	if err != nil {
		logger.Error("StudentService:Get:Error", "error", err, "student_id", id)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to get student", err)
	}
	if student == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "student not found", nil)
	}
	return toResponse(student), nil
}

func (s *studentService) List(ctx context.Context, identity middleware.Identity, p params.QueryParams) (*dto.PaginatedStudents, *errors.AppError) {
	students, total, err := s.repo.List(ctx, identity.UserID, p)
	if err != nil {
		logger.Error("StudentService:List:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to list students", err)
	}

	items := make([]dto.StudentResponse, 0, len(students))
	for i := range students {
		items = append(items, *toResponse(&students[i]))
	}
	return &dto.PaginatedStudents{
		Items:      items,
		TotalItems: total,
		PageNumber: p.PageNumber,
		PageSize:   p.PageSize,
	}, nil
}

func (s *studentService) Update(ctx context.Context, identity middleware.Identity, id uuid.UUID, req *dto.UpdateStudentRequest) (*dto.StudentResponse, *errors.AppError) {
	student, err := s.repo.GetByID(ctx, identity.UserID, id)
	if err != nil {
		logger.Error("StudentService:Update:GetByID:Error", "error", err, "student_id", id)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to get student", err)
	}
	if student == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "student not found", nil)
	}

	if req.Name != nil {
		student.Name = *req.Name
	}
	if req.Description != nil {
		student.Description = req.Description
	}
	if req.LessonsAmount != nil {
		student.LessonsAmount = *req.LessonsAmount
	}
	if req.LessonsCurrent != nil {
		student.LessonsCurrent = *req.LessonsCurrent
	}
	if req.NextLessonAt != nil {
		student.NextLessonAt = req.NextLessonAt
	}
	if req.PricePerLesson != nil {
		student.PricePerLesson = *req.PricePerLesson
	}
	if req.LessonsAmount != nil || req.PricePerLesson != nil {
		student.PriceTotal = student.LessonsAmount * student.PricePerLesson
	}
	if req.PaymentLastAt != nil {
		student.PaymentLastAt = req.PaymentLastAt
	}
	if req.PaymentNextAt != nil {
		student.PaymentNextAt = req.PaymentNextAt
	}

	if err := s.repo.Update(ctx, student); err != nil {
		logger.Error("StudentService:Update:Error", "error", err, "student_id", id)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to update student", err)
	}
	return toResponse(student), nil
}

// Delete removes the student row and schedules an out-of-band purge of the
// student's remote calendar events. The purge is best effort: if the tutor has
// no connected calendar the worker is a no-op.
func (s *studentService) Delete(ctx context.Context, identity middleware.Identity, id uuid.UUID) *errors.AppError {
	student, err := s.repo.GetByID(ctx, identity.UserID, id)
	if err != nil {
		logger.Error("StudentService:Delete:GetByID:Error", "error", err, "student_id", id)
		return errors.NewAppError(errors.ErrInternalServer, "failed to get student", err)
	}
	if student == nil {
		return errors.NewAppError(errors.ErrNotFound, "student not found", nil)
	}

	deleted, err := s.repo.Delete(ctx, identity.UserID, id)
	if err != nil {
		logger.Error("StudentService:Delete:Error", "error", err, "student_id", id)
		return errors.NewAppError(errors.ErrInternalServer, "failed to delete student", err)
	}
	if !deleted {
		return errors.NewAppError(errors.ErrNotFound, "student not found", nil)
	}

	calendarID := constants.DefaultCalendarID
	if student.SeriesCalendarID != nil && *student.SeriesCalendarID != "" {
		calendarID = *student.SeriesCalendarID
	}
	purge, terr := task.NewPurgeTask(task.PurgePayload{
		UserID:     identity.UserID.String(),
		StudentID:  id.String(),
		CalendarID: calendarID,
	})
	if terr != nil {
		logger.Error("StudentService:Delete:BuildPurgeTask:Error", "error", terr, "student_id", id)
		return nil
	}
	if err := s.queue.Enqueue(ctx, purge); err != nil {
		logger.Error("StudentService:Delete:EnqueuePurge:Error", "error", err, "student_id", id)
	}
	return nil
}

func toResponse(student *entity.Student) *dto.StudentResponse {
	res := &dto.StudentResponse{
		ID:             student.ID.String(),
		Name:           student.Name,
		Slug:           student.Slug,
		LessonsAmount:  student.LessonsAmount,
		LessonsCurrent: student.LessonsCurrent,
		LessonsLeft:    student.LessonsAmount - student.LessonsCurrent,
		NextLessonAt:   student.NextLessonAt,
		PricePerLesson: student.PricePerLesson,
		PriceTotal:     student.PriceTotal,
		PaymentLastAt:  student.PaymentLastAt,
		PaymentNextAt:  student.PaymentNextAt,
		CreatedAt:      student.CreatedAt,
	}
	if student.Description != nil {
		res.Description = *student.Description
	}
	return res
}
