package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrWorkerNotRunning = errors.New("worker is not running")

type WorkerHealth struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	Restarts  int       `json:"restarts"`
	LastError string    `json:"lastError,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

// Worker supervises a Subscriber in the background and restarts its loop
// after RestartDelay whenever it exits before Stop is called.
type Worker struct {
	name         string
	sub          Subscriber
	handler      Handler
	restartDelay time.Duration
	logger       *zap.Logger

	mu     sync.Mutex
	health WorkerHealth
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(name string, sub Subscriber, h Handler, restartDelay time.Duration, logger *zap.Logger) *Worker {
	return &Worker{
		name:         name,
		sub:          sub,
		handler:      h,
		restartDelay: restartDelay,
		logger:       logger.With(zap.String("worker", name)),
		health:       WorkerHealth{Name: name},
	}
}

// Start is a no-op if the worker is already running.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.health.Running = true
	w.health.StartedAt = time.Now()

	go w.supervise(ctx, w.done)
}

func (w *Worker) supervise(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer w.setRunning(false)

	// Stop은 수신만 끊고 처리 중인 메시지는 끝까지 보냄
	handler := func(hctx context.Context, msg Message) error {
		return w.handler(context.WithoutCancel(hctx), msg)
	}

	for {
		err := w.sub.Run(ctx, handler)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = ErrSubscriberClosed
		}

		w.mu.Lock()
		w.health.Restarts++
		w.health.LastError = err.Error()
		w.mu.Unlock()

		w.logger.Error("Consumer loop exited unexpectedly, restarting",
			zap.Duration("delay", w.restartDelay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.restartDelay):
		}
	}
}

// Stop cancels the receive loop and waits for the in-flight message to finish.
// Handlers run on a context that Stop does not cancel, so they must bound
// their own work.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	w.logger.Info("Stopping worker")
	cancel()
	<-done
}

func (w *Worker) Health() WorkerHealth {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.health
}

// HealthCheck returns an error when the worker is not running.
func (w *Worker) HealthCheck() error {
	if !w.Health().Running {
		return ErrWorkerNotRunning
	}
	return nil
}

func (w *Worker) setRunning(running bool) {
	w.mu.Lock()
	w.health.Running = running
	w.mu.Unlock()
}
