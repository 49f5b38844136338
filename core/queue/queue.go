package queue

import (
	"context"

	"github.com/kdvornichenko/weika-students/core/config"
	"github.com/kdvornichenko/weika-students/core/logger"

	"github.com/hibiken/asynq"
)

// Queue bundles the asynq client (enqueue side), the worker server and the
// periodic-task scheduler. Modules register handlers and schedules during
// Init; the server starts once all modules are wired.
type Queue struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
}

func New(cfg config.RedisConfig) *Queue {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 5,
	})

	return &Queue{
		client:    asynq.NewClient(redisOpt),
		server:    server,
		mux:       asynq.NewServeMux(),
		scheduler: asynq.NewScheduler(redisOpt, nil),
	}
}

func (q *Queue) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return err
	}
	logger.Info("Queue:Enqueue", "type", task.Type(), "id", info.ID, "queue", info.Queue)
	return nil
}

func (q *Queue) HandleFunc(pattern string, handler func(context.Context, *asynq.Task) error) {
	q.mux.HandleFunc(pattern, handler)
}

// Schedule registers a periodic task using a cron spec ("@every 1h", "0 3 * * *").
func (q *Queue) Schedule(spec string, task *asynq.Task) error {
	entryID, err := q.scheduler.Register(spec, task)
	if err != nil {
		return err
	}
	logger.Info("Queue:Schedule", "type", task.Type(), "spec", spec, "entry", entryID)
	return nil
}

func (q *Queue) Start() error {
	if err := q.server.Start(q.mux); err != nil {
		return err
	}
	return q.scheduler.Start()
}

func (q *Queue) Shutdown() {
	q.scheduler.Shutdown()
	q.server.Shutdown()
	if err := q.client.Close(); err != nil {
		logger.Error("Queue:Shutdown:CloseClient", "error", err)
	}
}
