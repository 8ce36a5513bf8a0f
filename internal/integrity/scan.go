package integrity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lzjever/lgu-integrity/internal/core"
	"github.com/lzjever/lgu-integrity/internal/observability"
)

const (
	DefaultWindow    = 24 * time.Hour
	DefaultMaxPerRun = 200
)

// RecordSource is the part of the record store the scan job needs.
type RecordSource interface {
	// ListForVerification returns records that are unverified or created at
	// or after since, newest first, at most limit.
	ListForVerification(ctx context.Context, since time.Time, limit int) ([]core.AuditRecord, error)
	MarkVerified(ctx context.Context, id string, at time.Time) error
}

type IncidentRecorder interface {
	RecordOrMerge(ctx context.Context, rec core.AuditRecord, f core.Finding) (*core.TamperIncident, error)
}

type ScanConfig struct {
	Window    time.Duration
	MaxPerRun int
}

type ScanResult struct {
	Checked   int `json:"checked"`
	Incidents int `json:"incidents"`
	Verified  int `json:"verified"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type ScanJob struct {
	records   RecordSource
	verifier  *Verifier
	incidents IncidentRecorder
	cfg       ScanConfig
	log       *zap.Logger
	now       func() time.Time
}

// NewScanJob builds a scan job. incidents may be nil, in which case findings
// are only logged.
func NewScanJob(records RecordSource, verifier *Verifier, incidents IncidentRecorder, cfg ScanConfig, log *zap.Logger) *ScanJob {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxPerRun <= 0 {
		cfg.MaxPerRun = DefaultMaxPerRun
	}
	return &ScanJob{
		records:   records,
		verifier:  verifier,
		incidents: incidents,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Run verifies one window of records sequentially. Per-record failures are
// logged and do not stop the run; a cancelled ctx stops it between records.
func (j *ScanJob) Run(ctx context.Context) (ScanResult, error) {
	start := j.now()
	defer func() {
		observability.ScanDuration.Observe(time.Since(start).Seconds())
	}()

	since := start.Add(-j.cfg.Window)
	recs, err := j.records.ListForVerification(ctx, since, j.cfg.MaxPerRun)
	if err != nil {
		return ScanResult{}, fmt.Errorf("list records for verification: %w", err)
	}

	var res ScanResult
	if len(recs) == 0 {
		j.log.Debug("integrity scan: no records to verify")
		return res, nil
	}
	res.Checked = len(recs)

	for i := range recs {
		if err := ctx.Err(); err != nil {
			j.log.Warn("integrity scan interrupted", zap.Int("remaining", len(recs)-i))
			return res, err
		}
		outcome := j.checkOne(ctx, recs[i])
		res.add(outcome)
		observability.ScanRecordsTotal.WithLabelValues(outcome).Inc()
	}

	j.log.Info("integrity scan completed",
		zap.Int("checked", res.Checked),
		zap.Int("incidents", res.Incidents),
		zap.Int("verified", res.Verified),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Duration("window", j.cfg.Window),
	)
	return res, nil
}

const (
	outcomeVerified = "verified"
	outcomeIncident = "incident"
	outcomeLogged   = "logged"
	outcomeSkipped  = "skipped"
	outcomeFailed   = "failed"
)

func (r *ScanResult) add(outcome string) {
	switch outcome {
	case outcomeVerified:
		r.Verified++
	case outcomeIncident:
		r.Incidents++
	case outcomeSkipped:
		r.Skipped++
	case outcomeFailed:
		r.Failed++
	}
}

func (j *ScanJob) checkOne(ctx context.Context, rec core.AuditRecord) (outcome string) {
	log := observability.RecordLogger(j.log, rec.ID, rec.SubjectID, rec.EventType)
	defer func() {
		if rvr := recover(); rvr != nil {
			log.Error("integrity verification panicked", zap.Any("panic", rvr))
			outcome = outcomeFailed
		}
	}()

	o, err := j.verifier.Verify(ctx, &rec)
	if errors.Is(err, ErrOracleUnavailable) {
		log.Warn("integrity verification skipped: ledger unavailable")
		return outcomeSkipped
	}
	if err != nil {
		log.Error("integrity verification failed", zap.Error(err))
		return outcomeFailed
	}

	f, raise := Classify(o)
	if !raise {
		if err := j.records.MarkVerified(ctx, rec.ID, j.now()); err != nil {
			log.Error("failed to mark record verified", zap.Error(err))
			return outcomeFailed
		}
		return outcomeVerified
	}

	if j.incidents == nil {
		log.Warn("audit integrity issue (incident store not configured)",
			zap.String("verification_status", string(f.VerificationStatus)),
			zap.String("error", f.Message),
		)
		return outcomeLogged
	}

	inc, err := j.incidents.RecordOrMerge(ctx, rec, f)
	if err != nil {
		log.Error("failed to record tamper incident", zap.Error(err))
		return outcomeFailed
	}
	log.Warn("audit tamper incident recorded",
		zap.String("incident_id", inc.ID),
		zap.String("status", string(inc.Status)),
		zap.String("severity", string(inc.Severity)),
		zap.String("verification_status", string(inc.VerificationStatus)),
	)
	return outcomeIncident
}
