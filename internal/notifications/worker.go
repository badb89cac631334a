package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// WorkerConfig contains worker configuration.
type WorkerConfig struct {
	NumWorkers        int
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		NumWorkers:        2,
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        5 * time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// Worker renders and sends queued notifications.
type Worker struct {
	config     WorkerConfig
	queue      *Queue
	dispatcher *Dispatcher
	renderer   *Renderer

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a new notification worker.
func NewWorker(config WorkerConfig, queue *Queue, dispatcher *Dispatcher, renderer *Renderer) *Worker {
	return &Worker{
		config:     config,
		queue:      queue,
		dispatcher: dispatcher,
		renderer:   renderer,
		stopCh:     make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("starting notification worker",
		"workers", w.config.NumWorkers,
		"max_attempts", w.config.MaxAttempts,
	)

	for i := 0; i < w.config.NumWorkers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Stop stops all workers and pending retries and waits for them to exit.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	slog.Info("notification worker stopped")
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case item, ok := <-w.queue.Items():
			if !ok {
				return
			}
			recordQueueDepth(w.queue.Len())
			slog.Debug("processing notification", "worker", workerID, "item_id", item.ID)
			w.processItem(ctx, item)
		}
	}
}

func (w *Worker) processItem(ctx context.Context, item *QueueItem) {
	start := time.Now()
	channel := string(item.Channel)

	subject, body, err := w.renderer.Render(item.Channel, item.Payload)
	if err != nil {
		slog.Error("failed to render", "item_id", item.ID, "error", err)
		recordNotificationSent(channel, "failed")
		return
	}

	err = w.dispatcher.SendToChannel(ctx, item.Channel, Notification{
		To:       item.To,
		Subject:  subject,
		Body:     body,
		Link:     item.Payload.IncidentURL,
		Priority: item.Payload.Incident.Level,
	})
	duration := time.Since(start)

	if err != nil {
		w.handleSendError(ctx, item, err)
		return
	}

	recordNotificationSent(channel, "success")
	recordNotificationDuration(channel, duration)

	slog.Debug("notification sent",
		"item_id", item.ID,
		"channel_type", item.Channel,
		"incident_id", item.Payload.Incident.ID,
		"duration", duration,
	)
}

func (w *Worker) handleSendError(ctx context.Context, item *QueueItem, err error) {
	channel := string(item.Channel)
	item.Attempts++
	item.LastError = err.Error()

	slog.Warn("send failed",
		"item_id", item.ID,
		"attempt", item.Attempts,
		"max_attempts", item.MaxAttempts,
		"error", err,
	)

	if !isRetryable(err) {
		recordNotificationSent(channel, "failed")
		return
	}

	if item.Attempts >= item.MaxAttempts {
		slog.Error("notification dropped", "item_id", item.ID, "error", fmt.Errorf("max attempts exceeded: %w", err))
		recordNotificationSent(channel, "failed")
		return
	}

	delay := w.backoff(item.Attempts)
	recordNotificationSent(channel, "retry")
	slog.Info("notification scheduled for retry", "item_id", item.ID, "delay", delay)

	w.wg.Add(1)
	go w.retryAfter(ctx, item, delay)
}

func (w *Worker) retryAfter(ctx context.Context, item *QueueItem, delay time.Duration) {
	defer w.wg.Done()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-w.stopCh:
		return
	case <-timer.C:
	}

	if err := w.queue.Enqueue(item); err != nil {
		slog.Error("failed to requeue notification", "item_id", item.ID, "error", err)
	}
}

// backoff returns the wait before the given retry attempt.
func (w *Worker) backoff(attempt int) time.Duration {
	backoff := float64(w.config.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= w.config.BackoffMultiplier
	}

	if backoff > float64(w.config.MaxBackoff) {
		backoff = float64(w.config.MaxBackoff)
	}

	return time.Duration(backoff)
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	type retryable interface {
		IsRetryable() bool
	}
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	// Default: retry unknown errors
	return true
}

// RetryableError wraps an error and marks it as retryable or not.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

// IsRetryable returns whether the error is retryable.
func (e *RetryableError) IsRetryable() bool {
	return e.Retryable
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a retryable error.
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: true}
}

// NewNonRetryableError creates a non-retryable error.
func NewNonRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: false}
}
