// Package incident owns tamper incidents: recording verification failures
// and the operator triage state machine new -> acknowledged -> resolved.
package incident

import (
	"context"
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/lzjever/lgu-integrity/internal/core"
	"github.com/lzjever/lgu-integrity/internal/observability"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Repository persists incidents. Every write replaces one whole incident.
type Repository interface {
	// FindOpenByAuditRecord returns the non-resolved incident referencing
	// recordID, or core.ErrNotExist.
	FindOpenByAuditRecord(ctx context.Context, recordID string) (*core.TamperIncident, error)
	Insert(ctx context.Context, inc *core.TamperIncident) error
	Save(ctx context.Context, inc *core.TamperIncident) error
	Get(ctx context.Context, id string) (*core.TamperIncident, error)
	List(ctx context.Context, f core.IncidentFilter) ([]core.TamperIncident, error)
	Stats(ctx context.Context) (core.IncidentStats, error)
}

type Alerter interface {
	Alert(ctx context.Context, inc *core.TamperIncident)
}

type Service struct {
	repo   Repository
	alerts Alerter
	log    *zap.Logger
	now    func() time.Time
}

// NewService builds the incident service. alerts may be nil.
func NewService(repo Repository, alerts Alerter, log *zap.Logger) *Service {
	return &Service{repo: repo, alerts: alerts, log: log, now: time.Now}
}

// RecordOrMerge folds a finding for rec into the open incident that already
// references rec, or opens a new one.
func (s *Service) RecordOrMerge(ctx context.Context, rec core.AuditRecord, f core.Finding) (*core.TamperIncident, error) {
	now := s.now().UTC()
	payload := core.VerificationPayload{
		AuditLogID:   rec.ID,
		UserID:       rec.SubjectID,
		Hash:         rec.Hash,
		TxHash:       rec.LedgerTxRef,
		BlockNumber:  rec.LedgerBlockRef,
		Verification: f.Verification,
	}
	event := core.VerificationEvent{At: now, Payload: payload}

	inc, err := s.repo.FindOpenByAuditRecord(ctx, rec.ID)
	switch {
	case errors.Is(err, core.ErrNotExist):
		inc = &core.TamperIncident{
			ID:                  core.NewID(),
			Status:              core.IncidentNew,
			Severity:            f.Severity,
			VerificationStatus:  f.VerificationStatus,
			Message:             f.Message,
			ContainmentActive:   f.ContainmentActive,
			AffectedUserIDs:     []string{rec.SubjectID},
			AuditLogIDs:         []string{rec.ID},
			VerificationPayload: payload,
			VerificationEvents:  []core.VerificationEvent{event},
			DetectedAt:          now,
			LastSeenAt:          now,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.repo.Insert(ctx, inc); err != nil {
			return nil, fmt.Errorf("insert incident: %w", err)
		}
		observability.IncidentsTotal.WithLabelValues("opened", string(f.VerificationStatus)).Inc()
	case err != nil:
		return nil, fmt.Errorf("find open incident: %w", err)
	default:
		inc.Severity = f.Severity
		inc.VerificationStatus = f.VerificationStatus
		inc.Message = f.Message
		inc.ContainmentActive = f.ContainmentActive
		inc.LastSeenAt = now
		inc.UpdatedAt = now
		inc.VerificationPayload = payload
		inc.AffectedUserIDs = union(inc.AffectedUserIDs, rec.SubjectID)
		inc.AuditLogIDs = union(inc.AuditLogIDs, rec.ID)
		inc.VerificationEvents = append(inc.VerificationEvents, event)
		if err := s.repo.Save(ctx, inc); err != nil {
			return nil, fmt.Errorf("save incident: %w", err)
		}
		observability.IncidentsTotal.WithLabelValues("merged", string(f.VerificationStatus)).Inc()
	}

	if s.alerts != nil {
		s.alerts.Alert(ctx, inc)
	}
	return inc, nil
}

// union appends v to ids unless already present, keeping existing order.
func union(ids []string, v string) []string {
	set := mapset.NewThreadUnsafeSet(ids...)
	if set.Contains(v) {
		return ids
	}
	return append(ids, v)
}

func (s *Service) Get(ctx context.Context, id string) (*core.TamperIncident, error) {
	if !core.ValidID(id) {
		return nil, core.NewAppError(core.ErrInvalidIncidentID, "invalid incident id")
	}
	inc, err := s.repo.Get(ctx, id)
	if errors.Is(err, core.ErrNotExist) {
		return nil, core.NewAppError(core.ErrIncidentNotFound, "Incident not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return inc, nil
}

// List returns incidents newest first. Limit defaults to 50 and is capped
// at 200.
func (s *Service) List(ctx context.Context, f core.IncidentFilter) ([]core.TamperIncident, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, core.NewAppError(core.ErrBadRequest, "invalid status filter")
	}
	if f.Severity != "" && !f.Severity.Valid() {
		return nil, core.NewAppError(core.ErrBadRequest, "invalid severity filter")
	}
	f.Limit = ClampLimit(f.Limit)
	return s.repo.List(ctx, f)
}

func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func (s *Service) Stats(ctx context.Context) (core.IncidentStats, error) {
	return s.repo.Stats(ctx)
}

// Acknowledge moves a non-resolved incident to acknowledged. containment,
// when non-nil, overrides containmentActive.
func (s *Service) Acknowledge(ctx context.Context, id, operator string, containment *bool) (*core.TamperIncident, error) {
	return s.mutate(ctx, id, func(inc *core.TamperIncident, now time.Time) error {
		if inc.Status == core.IncidentResolved {
			return core.NewAppError(core.ErrIncidentResolved, "Incident is already resolved")
		}
		s.transition(inc, core.IncidentAcknowledged)
		inc.AcknowledgedAt = &now
		inc.AcknowledgedBy = operator
		if containment != nil {
			inc.ContainmentActive = *containment
		}
		return nil
	})
}

// SetContainment toggles containment in any state without touching status.
func (s *Service) SetContainment(ctx context.Context, id string, active bool) (*core.TamperIncident, error) {
	return s.mutate(ctx, id, func(inc *core.TamperIncident, _ time.Time) error {
		inc.ContainmentActive = active
		return nil
	})
}

// Resolve closes the incident and sets containment to the given value.
func (s *Service) Resolve(ctx context.Context, id, operator, notes string, containment bool) (*core.TamperIncident, error) {
	return s.mutate(ctx, id, func(inc *core.TamperIncident, now time.Time) error {
		if inc.Status == core.IncidentResolved {
			return core.NewAppError(core.ErrIncidentResolved, "Incident is already resolved")
		}
		s.transition(inc, core.IncidentResolved)
		inc.ResolvedAt = &now
		inc.ResolvedBy = operator
		inc.ResolutionNotes = notes
		inc.ContainmentActive = containment
		return nil
	})
}

func (s *Service) transition(inc *core.TamperIncident, to core.IncidentStatus) {
	observability.IncidentTransitions.WithLabelValues(string(inc.Status), string(to)).Inc()
	inc.Status = to
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*core.TamperIncident, time.Time) error) (*core.TamperIncident, error) {
	inc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := fn(inc, now); err != nil {
		return nil, err
	}
	inc.UpdatedAt = now
	if err := s.repo.Save(ctx, inc); err != nil {
		if errors.Is(err, core.ErrNotExist) {
			return nil, core.NewAppError(core.ErrIncidentNotFound, "Incident not found")
		}
		return nil, fmt.Errorf("save incident: %w", err)
	}
	s.log.Info("incident updated",
		zap.String("incident_id", inc.ID),
		zap.String("status", string(inc.Status)),
		zap.Bool("containment_active", inc.ContainmentActive),
	)
	return inc, nil
}
