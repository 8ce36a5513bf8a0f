// Package anchor submits audit hashes to the ledger in the background so that
// request latency never depends on ledger latency.
//
// The queue is process-local and single-consumer. A failed job is re-appended
// to the tail and retried after a fixed delay, so jobs are eventually
// processed but not strictly in FIFO order once retries happen. Jobs that
// exhaust their retries are dropped with an error log; nothing is persisted,
// and a crash loses every pending job.
package anchor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lzjever/lgu-integrity/internal/ledger"
	"github.com/lzjever/lgu-integrity/internal/observability"
)

type Operation string

const (
	OpAnchorHash    Operation = "logAuditHash"
	OpCriticalEvent Operation = "logCriticalEvent"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second

	backlinkTimeout = 10 * time.Second
)

// ErrStopped is returned by Enqueue after Drain or Stop.
var ErrStopped = errors.New("anchor queue stopped")

// BacklinkWriter stores the ledger reference on the anchored audit record.
type BacklinkWriter interface {
	SetLedgerRef(ctx context.Context, recordID, txHash string, blockNumber uint64) error
}

type Config struct {
	MaxRetries int
	RetryDelay time.Duration
}

type job struct {
	operation  Operation
	args       []string
	recordID   string
	retries    int
	enqueuedAt time.Time
}

type Queue struct {
	oracle  ledger.Oracle
	records BacklinkWriter
	cfg     Config
	log     *zap.Logger

	mu         sync.Mutex
	jobs       []*job
	processing bool
	closed     bool
	halted     bool
	done       chan struct{}
	halt       chan struct{}
}

func New(oracle ledger.Oracle, records BacklinkWriter, cfg Config, log *zap.Logger) *Queue {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Queue{
		oracle:  oracle,
		records: records,
		cfg:     cfg,
		log:     log,
		halt:    make(chan struct{}),
	}
}

// Enqueue adds a job and returns immediately. recordID may be empty when
// there is no audit record to backlink.
func (q *Queue) Enqueue(op Operation, args []string, recordID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.log.Warn("anchor job rejected, queue stopped",
			zap.String("operation", string(op)),
			zap.String("record_id", recordID),
		)
		return ErrStopped
	}
	q.jobs = append(q.jobs, &job{
		operation:  op,
		args:       append([]string(nil), args...),
		recordID:   recordID,
		enqueuedAt: time.Now(),
	})
	observability.AnchorQueueDepth.Set(float64(len(q.jobs)))
	if !q.processing {
		q.processing = true
		q.done = make(chan struct{})
		go q.run(q.done)
	}
	return nil
}

func (q *Queue) run(done chan struct{}) {
	defer close(done)
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 || q.halted {
			q.processing = false
			q.mu.Unlock()
			return
		}
		j := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		observability.AnchorQueueDepth.Set(float64(len(q.jobs)))
		q.mu.Unlock()

		q.process(j)
	}
}

func (q *Queue) process(j *job) {
	log := q.log.With(
		zap.String("operation", string(j.operation)),
		zap.String("record_id", j.recordID),
		zap.Int("retries", j.retries),
	)

	start := time.Now()
	res, err := q.dispatch(j)
	observability.AnchorDuration.WithLabelValues(string(j.operation)).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.AnchorAttemptsTotal.WithLabelValues(string(j.operation), "invalid").Inc()
		log.Error("anchor job discarded", zap.Error(err))
		return
	}

	if res.Success {
		observability.AnchorAttemptsTotal.WithLabelValues(string(j.operation), "success").Inc()
		if j.recordID != "" {
			ctx, cancel := context.WithTimeout(context.Background(), backlinkTimeout)
			defer cancel()
			if err := q.records.SetLedgerRef(ctx, j.recordID, res.TxHash, res.BlockNumber); err != nil {
				log.Error("failed to store ledger reference on audit record",
					zap.Error(err),
					zap.String("tx_hash", res.TxHash),
				)
			}
		}
		log.Debug("anchor job succeeded",
			zap.String("tx_hash", res.TxHash),
			zap.Uint64("block_number", res.BlockNumber),
		)
		return
	}

	q.retry(j, res.Error, log)
}

func (q *Queue) retry(j *job, cause string, log *zap.Logger) {
	q.mu.Lock()
	if j.retries < q.cfg.MaxRetries && !q.halted {
		j.retries++
		q.jobs = append(q.jobs, j)
		observability.AnchorQueueDepth.Set(float64(len(q.jobs)))
		q.mu.Unlock()

		observability.AnchorAttemptsTotal.WithLabelValues(string(j.operation), "retry").Inc()
		log.Warn("anchor job failed, re-queued", zap.String("error", cause), zap.Int("attempt", j.retries))
		select {
		case <-time.After(q.cfg.RetryDelay):
		case <-q.halt:
		}
		return
	}
	q.mu.Unlock()

	observability.AnchorAttemptsTotal.WithLabelValues(string(j.operation), "failed").Inc()
	observability.AnchorDroppedTotal.WithLabelValues(string(j.operation)).Inc()
	log.Error("anchor job dropped after exhausting retries",
		zap.String("error", cause),
		zap.Int("max_retries", q.cfg.MaxRetries),
	)
}

// dispatch calls the oracle for j. A non-nil error means the job can never
// succeed and must not be retried.
func (q *Queue) dispatch(j *job) (res ledger.AnchorResult, err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			res = ledger.AnchorResult{Error: fmt.Sprintf("oracle panic: %v", rvr), Failure: ledger.FailureOther}
			err = nil
		}
	}()

	ctx := context.Background()
	switch j.operation {
	case OpAnchorHash:
		if len(j.args) < 2 {
			return res, fmt.Errorf("%s needs hash and event type, got %d args", j.operation, len(j.args))
		}
		return q.oracle.Anchor(ctx, j.args[0], j.args[1]), nil
	case OpCriticalEvent:
		if len(j.args) < 3 {
			return res, fmt.Errorf("%s needs event type, subject and details, got %d args", j.operation, len(j.args))
		}
		return q.oracle.LogCriticalEvent(ctx, j.args[0], j.args[1], j.args[2]), nil
	default:
		return res, fmt.Errorf("unknown anchor operation %q", j.operation)
	}
}

// Drain stops accepting new jobs and waits until every queued job, retries
// included, has been processed or ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	done := q.done
	processing := q.processing
	q.mu.Unlock()

	if !processing {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop halts the consumer after the in-flight job, discards pending jobs and
// rejects further enqueues. It returns the number of discarded jobs.
func (q *Queue) Stop() int {
	q.mu.Lock()
	q.closed = true
	dropped := len(q.jobs)
	q.jobs = nil
	observability.AnchorQueueDepth.Set(0)
	if !q.halted {
		q.halted = true
		close(q.halt)
	}
	done := q.done
	processing := q.processing
	q.mu.Unlock()

	if processing {
		<-done
	}
	if dropped > 0 {
		q.log.Warn("anchor queue stopped with pending jobs", zap.Int("dropped", dropped))
	}
	return dropped
}

// Clear discards pending jobs without stopping the queue.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.jobs)
	q.jobs = nil
	observability.AnchorQueueDepth.Set(0)
	return n
}

type ItemStatus struct {
	Operation  Operation `json:"operation"`
	RecordID   string    `json:"recordId,omitempty"`
	Retries    int       `json:"retries"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

type Status struct {
	QueueLength int          `json:"queueLength"`
	Processing  bool         `json:"processing"`
	Items       []ItemStatus `json:"items"`
}

func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := make([]ItemStatus, len(q.jobs))
	for i, j := range q.jobs {
		items[i] = ItemStatus{
			Operation:  j.operation,
			RecordID:   j.recordID,
			Retries:    j.retries,
			EnqueuedAt: j.enqueuedAt,
		}
	}
	return Status{QueueLength: len(q.jobs), Processing: q.processing, Items: items}
}
