// Package auditlog is the write path for audit records: hash, persist, then
// hand the hash to the anchor queue.
package auditlog

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/lzjever/lgu-integrity/internal/anchor"
	"github.com/lzjever/lgu-integrity/internal/core"
	"github.com/lzjever/lgu-integrity/internal/ledger"
	"github.com/lzjever/lgu-integrity/internal/observability"
)

type RecordCreator interface {
	Create(ctx context.Context, rec core.AuditRecord) error
}

type Enqueuer interface {
	Enqueue(op anchor.Operation, args []string, recordID string) error
}

type Writer struct {
	records RecordCreator
	queue   Enqueuer
	oracle  ledger.Oracle
	log     *zap.Logger
}

func NewWriter(records RecordCreator, queue Enqueuer, oracle ledger.Oracle, log *zap.Logger) *Writer {
	return &Writer{records: records, queue: queue, oracle: oracle, log: log}
}

// Entry is one audit event to record. Critical entries are also logged to
// the ledger as a critical event alongside the hash.
type Entry struct {
	core.HashInput
	Critical bool
}

// Write persists the record and schedules anchoring. Anchoring is skipped
// when the ledger is not available; the record then stays unanchored.
func (w *Writer) Write(ctx context.Context, e Entry) (core.AuditRecord, error) {
	rec, err := core.NewAuditRecord(e.HashInput)
	if err != nil {
		return core.AuditRecord{}, fmt.Errorf("build audit record: %w", err)
	}
	if err := w.records.Create(ctx, rec); err != nil {
		return core.AuditRecord{}, fmt.Errorf("store audit record: %w", err)
	}

	log := observability.RecordLogger(w.log, rec.ID, rec.SubjectID, rec.EventType)
	if !w.oracle.IsAvailable() {
		log.Debug("ledger unavailable, record left unanchored")
		return rec, nil
	}

	if err := w.queue.Enqueue(anchor.OpAnchorHash, []string{rec.Hash, rec.EventType}, rec.ID); err != nil {
		log.Warn("failed to enqueue anchor job", zap.Error(err))
	}
	if e.Critical {
		details, err := json.Marshal(map[string]string{
			"field":    rec.FieldChanged,
			"newValue": rec.NewValue,
			"role":     rec.Role,
		})
		if err != nil {
			log.Warn("failed to encode critical event details", zap.Error(err))
			return rec, nil
		}
		if err := w.queue.Enqueue(anchor.OpCriticalEvent, []string{rec.EventType, rec.SubjectID, string(details)}, ""); err != nil {
			log.Warn("failed to enqueue critical event", zap.Error(err))
		}
	}
	return rec, nil
}
