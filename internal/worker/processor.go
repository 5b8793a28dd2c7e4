// Package worker contains the relay worker that fans chat frames out to
// every authenticated connection.
package worker

import (
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/adcondev/relay-daemon/internal/protocol"
	"github.com/adcondev/relay-daemon/internal/relayerr"
	"github.com/adcondev/relay-daemon/internal/server"
)

// Recipients lists the connections a message is delivered to.
type Recipients interface {
	Authenticated() []server.Recipient
}

// Worker consumes relay jobs in arrival order and broadcasts each one.
type Worker struct {
	jobQueue   <-chan *server.RelayJob
	recipients Recipients
	logger     *slog.Logger
	stopChan   chan struct{}
	wg         sync.WaitGroup

	mu               sync.Mutex
	isRunning        bool
	jobsRelayed      int64
	jobsFailed       int64
	deliveries       int64
	deliveriesFailed int64
	lastJobTime      time.Time
}

// NewWorker creates a new relay worker
func NewWorker(jobQueue <-chan *server.RelayJob, recipients Recipients, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Worker{
		jobQueue:   jobQueue,
		recipients: recipients,
		logger:     logger.With(slog.String("component", "worker")),
		stopChan:   make(chan struct{}),
	}
}

// Start begins the worker goroutine
func (w *Worker) Start() {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run()

	w.logger.Info("✅ relay worker started and ready")
}

// Stop gracefully stops the worker. A stopped worker cannot be restarted.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	st := w.Stats()
	w.logger.Info("🛑 relay worker stopped",
		slog.Int64("relayed", st.JobsRelayed),
		slog.Int64("failed", st.JobsFailed))
}

// run is the main worker loop
func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			return

		case job, ok := <-w.jobQueue:
			if !ok {
				w.logger.Info("📴 relay queue closed, exiting")
				return
			}
			w.processJob(job)
		}
	}
}

// processJob handles a single relay job
func (w *Worker) processJob(job *server.RelayJob) {
	delivered, failed, err := w.broadcast(job)

	w.mu.Lock()
	if err != nil {
		w.jobsFailed++
	} else {
		w.jobsRelayed++
	}
	w.deliveries += int64(delivered)
	w.deliveriesFailed += int64(failed)
	w.lastJobTime = time.Now()
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("❌ relay failed", slog.String("job", job.ID), slog.String("error", err.Error()))
		return
	}
	w.logger.Info("📤 message relayed",
		slog.String("job", job.ID),
		slog.String("username", job.Username),
		slog.Int("delivered", delivered),
		slog.Int("failed", failed),
		slog.Duration("latency", time.Since(job.ReceivedAt)))
}

// broadcast encodes the message once and enqueues it to every recipient
// authenticated at this instant. A recipient that cannot take the message is
// skipped.
func (w *Worker) broadcast(job *server.RelayJob) (delivered, failed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered in broadcast: %v", r)
			w.logger.Error("💥 panic in relay job",
				slog.String("job", job.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	payload, err := protocol.Encode(protocol.ChatMessage{Username: job.Username, Text: job.Text})
	if err != nil {
		return 0, 0, fmt.Errorf("encode message: %w", err)
	}

	for _, rcpt := range w.recipients.Authenticated() {
		if sendErr := rcpt.Send(payload); sendErr != nil {
			failed++
			w.logger.Warn("⚠️ delivery failed",
				slog.String("job", job.ID),
				slog.String("conn", rcpt.ID()),
				slog.String("reason", relayerr.Describe(sendErr)))
			continue
		}
		delivered++
	}
	return delivered, failed, nil
}

// Stats returns current worker statistics
func (w *Worker) Stats() Statistics {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Statistics{
		IsRunning:        w.isRunning,
		JobsRelayed:      w.jobsRelayed,
		JobsFailed:       w.jobsFailed,
		Deliveries:       w.deliveries,
		DeliveriesFailed: w.deliveriesFailed,
		LastJobTime:      w.lastJobTime,
	}
}

// Statistics holds worker runtime statistics
type Statistics struct {
	IsRunning        bool      `json:"is_running"`
	JobsRelayed      int64     `json:"jobs_relayed"`
	JobsFailed       int64     `json:"jobs_failed"`
	Deliveries       int64     `json:"deliveries"`
	DeliveriesFailed int64     `json:"deliveries_failed"`
	LastJobTime      time.Time `json:"last_job_time,omitempty"`
}
