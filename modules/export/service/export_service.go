package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/kdvornichenko/weika-students/core/config"
	"github.com/kdvornichenko/weika-students/core/errors"
	"github.com/kdvornichenko/weika-students/core/logger"
	"github.com/kdvornichenko/weika-students/core/middleware"
	calendardto "github.com/kdvornichenko/weika-students/modules/calendar/dto"
	calendarservice "github.com/kdvornichenko/weika-students/modules/calendar/service"
	"github.com/kdvornichenko/weika-students/modules/export/dto"

	ics "github.com/arran4/golang-ical"
	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type ExportService interface {
	RenderSchedule(ctx context.Context, identity middleware.Identity, studentID uuid.UUID) (string, *errors.AppError)
	UploadSnapshot(ctx context.Context, identity middleware.Identity, studentID uuid.UUID) (*dto.SnapshotResponse, *errors.AppError)
}

// Uploader is the blob-store surface the snapshot flow needs.
type Uploader interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

type exportService struct {
	calendar calendarservice.CalendarService
	uploader Uploader
	bucket   string
	now      func() time.Time
}

func NewExportService(calendar calendarservice.CalendarService) ExportService {
	s3cfg := config.Get().S3
	return &exportService{
		calendar: calendar,
		uploader: newS3Uploader(s3cfg),
		bucket:   s3cfg.Bucket,
		now:      time.Now,
	}
}

func (s *exportService) RenderSchedule(ctx context.Context, identity middleware.Identity, studentID uuid.UUID) (string, *errors.AppError) {
	rows, appErr := s.calendar.ListLessons(ctx, identity, calendardto.ListLessonsQuery{
		StudentID: studentID.String(),
	})
	if appErr != nil {
		return "", appErr
	}
	return renderICS(rows, s.now()), nil
}

func (s *exportService) UploadSnapshot(ctx context.Context, identity middleware.Identity, studentID uuid.UUID) (*dto.SnapshotResponse, *errors.AppError) {
	if s.bucket == "" {
		return nil, errors.NewAppError(errors.ErrInternalServer, "snapshot storage is not configured", nil)
	}

	document, appErr := s.RenderSchedule(ctx, identity, studentID)
	if appErr != nil {
		return nil, appErr
	}

	now := s.now().UTC()
	key := fmt.Sprintf("schedules/%s/%s.ics", studentID, now.Format("20060102T150405Z"))
	if err := s.uploader.Put(ctx, key, []byte(document), "text/calendar"); err != nil {
		logger.Error("ExportService:UploadSnapshot:Error", "error", err, "key", key)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to upload snapshot", err)
	}

	logger.Info("ExportService:UploadSnapshot:Done", "key", key, "student_id", studentID)
	return &dto.SnapshotResponse{Key: key, Bucket: s.bucket, UploadedAt: now}, nil
}

// renderICS turns lesson rows into an iCalendar document.
func renderICS(rows []calendardto.LessonRow, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//weika-students//schedule//EN")

	for _, row := range rows {
		ev := cal.AddEvent(row.ID)
		ev.SetDtStampTime(now.UTC())
		ev.SetSummary(row.Title)
		if row.AllDay {
			ev.SetAllDayStartAt(row.Start)
			ev.SetAllDayEndAt(row.End)
		} else {
			ev.SetStartAt(row.Start)
			ev.SetEndAt(row.End)
		}
	}
	return cal.Serialize()
}

type s3Uploader struct {
	client *s3.Client
	bucket string
}

func newS3Uploader(cfg config.S3Config) Uploader {
	client := s3.NewFromConfig(aws.Config{
		Region:      cfg.Region,
		Credentials: awscreds.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	})
	return &s3Uploader{client: client, bucket: cfg.Bucket}
}

func (u *s3Uploader) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	return err
}
