// Package jobs runs the asynchronous side of the scheduling core: the
// redis-backed job queue, advisory locks and outbound webhook delivery.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Job types known to the queue.
const (
	JobTimesheetRecalc = "timesheet_recalc"
	JobDoctorWebhook   = "doctor_webhook"
	JobAttendanceSync  = "attendance_sync"
)

type Job struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Attempt int             `json:"attempt"`
}

type Handler func(ctx context.Context, payload json.RawMessage) error

// RetrySchedule maps the attempt number to the delay before the next try.
// Attempts beyond the schedule fall back to doubling the last delay.
type RetrySchedule map[int]time.Duration

func (s RetrySchedule) DelayFor(attempt int) time.Duration {
	if d, ok := s[attempt]; ok {
		return d
	}
	// Exponential backoff default, capped at an hour.
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > time.Hour {
		d = time.Hour
	}
	return d
}

// Queue is a redis list with a sorted set for delayed retries.
type Queue struct {
	rdb  *redis.Client
	name string
	log  *logrus.Logger

	handlers    map[string]Handler
	retries     map[string]RetrySchedule
	maxAttempts int
}

func NewQueue(rdb *redis.Client, name string, log *logrus.Logger) *Queue {
	return &Queue{
		rdb:         rdb,
		name:        name,
		log:         log,
		handlers:    make(map[string]Handler),
		retries:     make(map[string]RetrySchedule),
		maxAttempts: 5,
	}
}

func (q *Queue) readyKey() string   { return q.name + ":ready" }
func (q *Queue) delayedKey() string { return q.name + ":delayed" }

// Handle registers the handler and retry policy for a job type.
func (q *Queue) Handle(jobType string, handler Handler, retries RetrySchedule) {
	q.handlers[jobType] = handler
	q.retries[jobType] = retries
}

func (q *Queue) Enqueue(ctx context.Context, jobType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", jobType, err)
	}

	job := Job{ID: uuid.NewString(), Type: jobType, Payload: body}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}

	if err := q.rdb.LPush(ctx, q.readyKey(), raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	q.log.WithFields(logrus.Fields{"job": job.ID, "type": jobType}).Debug("Job enqueued")
	return nil
}

func (q *Queue) enqueueDelayed(ctx context.Context, job Job, delay time.Duration) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	score := float64(time.Now().Add(delay).Unix())
	return q.rdb.ZAdd(ctx, q.delayedKey(), &redis.Z{Score: score, Member: raw}).Err()
}

// Run consumes jobs until the context is cancelled. Jobs are cancellable
// between records, never mid-handler.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := q.promoteDelayed(ctx); err != nil && ctx.Err() == nil {
			q.log.WithError(err).Warn("Failed to promote delayed jobs")
		}

		res, err := q.rdb.BRPop(ctx, time.Second, q.readyKey()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.log.WithError(err).Warn("Queue pop failed")
			time.Sleep(time.Second)
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			q.log.WithError(err).Error("Dropping malformed job")
			continue
		}

		q.process(ctx, job)
	}
}

func (q *Queue) process(ctx context.Context, job Job) {
	handler, ok := q.handlers[job.Type]
	if !ok {
		q.log.WithField("type", job.Type).Error("No handler for job type")
		return
	}

	err := handler(ctx, job.Payload)
	if err == nil {
		return
	}

	job.Attempt++
	if job.Attempt >= q.maxAttempts {
		q.log.WithError(err).WithFields(logrus.Fields{
			"job":  job.ID,
			"type": job.Type,
		}).Error("Job failed terminally")
		return
	}

	delay := q.retries[job.Type].DelayFor(job.Attempt)
	q.log.WithError(err).WithFields(logrus.Fields{
		"job":     job.ID,
		"type":    job.Type,
		"attempt": job.Attempt,
		"delay":   delay,
	}).Warn("Job failed, retrying")

	if err := q.enqueueDelayed(ctx, job, delay); err != nil {
		q.log.WithError(err).Error("Failed to schedule retry")
	}
}

// promoteDelayed moves due delayed jobs back onto the ready list.
func (q *Queue) promoteDelayed(ctx context.Context) error {
	now := fmt.Sprintf("%d", time.Now().Unix())
	members, err := q.rdb.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := q.rdb.LPush(ctx, q.readyKey(), m).Err(); err != nil {
			return err
		}
		q.rdb.ZRem(ctx, q.delayedKey(), m)
	}
	return nil
}
