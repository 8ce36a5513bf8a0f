// Package scanner runs the integrity scan job on a cron schedule and on
// demand.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	robcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lzjever/lgu-integrity/internal/integrity"
	"github.com/lzjever/lgu-integrity/internal/observability"
)

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerStartup  = "startup"
)

// ErrScanInProgress is returned when a run is requested while one is active.
var ErrScanInProgress = errors.New("integrity scan already in progress")

type Runner interface {
	Run(ctx context.Context) (integrity.ScanResult, error)
}

// RunRecord describes one finished scan.
type RunRecord struct {
	Trigger    string               `json:"trigger"`
	StartedAt  time.Time            `json:"startedAt"`
	FinishedAt time.Time            `json:"finishedAt"`
	Result     integrity.ScanResult `json:"result"`
	Error      string               `json:"error,omitempty"`
}

type Scheduler struct {
	cron    *robcron.Cron
	entryID robcron.EntryID
	job     Runner
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	running sync.Mutex

	mu   sync.RWMutex
	last *RunRecord
}

// NewScheduler registers job under the given cron expression. The scheduler
// does not fire until Start.
func NewScheduler(job Runner, schedule string, log *zap.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   robcron.New(),
		job:    job,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	id, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.RunNow(TriggerSchedule); errors.Is(err, ErrScanInProgress) {
			s.log.Warn("scheduled integrity scan skipped: previous run still active")
		}
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}
	s.entryID = id
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("integrity scan scheduler started", zap.Time("next_run", s.Next()))
}

// Stop stops scheduling new runs and waits for an active run to finish. If
// ctx expires first the active run is cancelled between records.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
	// wait for manual runs as well
	waited := make(chan struct{})
	go func() {
		s.running.Lock()
		s.running.Unlock()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs the scan synchronously unless a run is already active.
func (s *Scheduler) RunNow(trigger string) (integrity.ScanResult, error) {
	if !s.running.TryLock() {
		return integrity.ScanResult{}, ErrScanInProgress
	}
	defer s.running.Unlock()

	if err := s.ctx.Err(); err != nil {
		return integrity.ScanResult{}, err
	}

	observability.ScanRunsTotal.WithLabelValues(trigger).Inc()
	rec := RunRecord{Trigger: trigger, StartedAt: time.Now().UTC()}
	res, err := s.job.Run(s.ctx)
	rec.FinishedAt = time.Now().UTC()
	rec.Result = res
	if err != nil {
		rec.Error = err.Error()
		s.log.Error("integrity scan failed", zap.String("trigger", trigger), zap.Error(err))
	}

	s.mu.Lock()
	s.last = &rec
	s.mu.Unlock()
	return res, err
}

// Last returns the most recent finished run.
func (s *Scheduler) Last() (RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return RunRecord{}, false
	}
	return *s.last, true
}

// Next returns the next scheduled run, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}
