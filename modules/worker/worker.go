package worker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"product-studio-server/modules/batch"
	"product-studio-server/modules/common/model"
	"product-studio-server/modules/common/obs"
)

const (
	popTimeout   = 5 * time.Second
	errorBackoff = 5 * time.Second
	jobTimeout   = 30 * time.Minute
)

// JobRunner - 큐 작업 실행 (batch.Executor)
type JobRunner interface {
	RunJob(ctx context.Context, job batch.Job, client *http.Client) (*model.BatchResult, error)
}

// Worker - Redis 큐 감시 후 배치 실행
type Worker struct {
	queue  *Queue
	runner JobRunner
	client *http.Client
	slots  *semaphore.Weighted
}

// NewWorker - maxJobs개까지 동시에 배치 실행
func NewWorker(queue *Queue, runner JobRunner, maxJobs int) *Worker {
	if maxJobs < 1 {
		maxJobs = 1
	}
	return &Worker{
		queue:  queue,
		runner: runner,
		client: &http.Client{Timeout: 30 * time.Second},
		slots:  semaphore.NewWeighted(int64(maxJobs)),
	}
}

// Start - ctx가 끝날 때까지 큐 감시 (blocking)
func (w *Worker) Start(ctx context.Context) {
	log.Info().Msg("👀 [Worker] Watching queue: " + w.queue.name)

	for {
		// 빈 슬롯이 생길 때까지 다음 작업을 꺼내지 않음
		if err := w.slots.Acquire(ctx, 1); err != nil {
			log.Info().Msg("🛑 [Worker] Stopped")
			return
		}

		job, err := w.queue.pop(ctx, popTimeout)
		if err != nil {
			w.slots.Release(1)
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				log.Info().Msg("🛑 [Worker] Stopped")
				return
			}
			log.Error().Err(err).Msg("❌ [Worker] Redis BRPOP error")
			select {
			case <-time.After(errorBackoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		if job == nil {
			w.slots.Release(1)
			continue
		}

		log.Info().Str("batch_id", job.BatchID).Str("source", string(job.Source)).Msg("🎯 [Worker] Received batch")
		go func(job batch.Job) {
			defer w.slots.Release(1)
			w.process(context.WithoutCancel(ctx), job)
		}(*job)
	}
}

func (w *Worker) process(ctx context.Context, job batch.Job) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	result, err := w.runner.RunJob(ctx, job, w.client)
	obs.RecordQueueJob(err)
	if err != nil {
		log.Error().Err(err).Str("batch_id", job.BatchID).Msg("❌ [Worker] Batch failed")
		return
	}
	log.Info().
		Str("batch_id", job.BatchID).
		Int("total", result.Total).
		Int("fixed", result.SuccessfullyFixed).
		Dur("waited", start.Sub(job.EnqueuedAt)).
		Dur("elapsed", time.Since(start)).
		Msg("✅ [Worker] Batch done")
}
