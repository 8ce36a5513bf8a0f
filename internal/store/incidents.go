package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lzjever/lgu-integrity/internal/core"
)

const incidentColumns = `id, status, severity, verification_status, message, containment_active,
	affected_user_ids, audit_log_ids, verification_payload, verification_events,
	detected_at, last_seen_at, acknowledged_at, acknowledged_by, resolved_at, resolved_by, resolution_notes,
	created_at, updated_at`

// IncidentStore keeps tamper incidents in Postgres. Each write replaces one
// row.
type IncidentStore struct {
	pool *pgxpool.Pool
}

func NewIncidentStore(pool *pgxpool.Pool) *IncidentStore {
	return &IncidentStore{pool: pool}
}

func (s *IncidentStore) FindOpenByAuditRecord(ctx context.Context, recordID string) (*core.TamperIncident, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+incidentColumns+`
		FROM tamper_incidents
		WHERE $1 = ANY(audit_log_ids) AND status <> 'resolved'
		ORDER BY created_at DESC
		LIMIT 1`, recordID)
	return s.one(row)
}

func (s *IncidentStore) Get(ctx context.Context, id string) (*core.TamperIncident, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+incidentColumns+` FROM tamper_incidents WHERE id = $1`, id)
	return s.one(row)
}

func (s *IncidentStore) one(row pgx.Row) (*core.TamperIncident, error) {
	inc, err := scanIncident(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

func (s *IncidentStore) Insert(ctx context.Context, inc *core.TamperIncident) error {
	payload, events, err := encodeIncidentDocs(inc)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO tamper_incidents (`+incidentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		inc.ID, inc.Status, inc.Severity, inc.VerificationStatus, inc.Message, inc.ContainmentActive,
		nonNil(inc.AffectedUserIDs), nonNil(inc.AuditLogIDs), payload, events,
		inc.DetectedAt, inc.LastSeenAt, timestamptzFromPtr(inc.AcknowledgedAt), inc.AcknowledgedBy,
		timestamptzFromPtr(inc.ResolvedAt), inc.ResolvedBy, inc.ResolutionNotes,
		inc.CreatedAt, inc.UpdatedAt,
	)
	return err
}

func (s *IncidentStore) Save(ctx context.Context, inc *core.TamperIncident) error {
	payload, events, err := encodeIncidentDocs(inc)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE tamper_incidents SET
			status = $2, severity = $3, verification_status = $4, message = $5, containment_active = $6,
			affected_user_ids = $7, audit_log_ids = $8, verification_payload = $9, verification_events = $10,
			last_seen_at = $11, acknowledged_at = $12, acknowledged_by = $13,
			resolved_at = $14, resolved_by = $15, resolution_notes = $16, updated_at = $17
		WHERE id = $1`,
		inc.ID, inc.Status, inc.Severity, inc.VerificationStatus, inc.Message, inc.ContainmentActive,
		nonNil(inc.AffectedUserIDs), nonNil(inc.AuditLogIDs), payload, events,
		inc.LastSeenAt, timestamptzFromPtr(inc.AcknowledgedAt), inc.AcknowledgedBy,
		timestamptzFromPtr(inc.ResolvedAt), inc.ResolvedBy, inc.ResolutionNotes, inc.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotExist
	}
	return nil
}

func (s *IncidentStore) List(ctx context.Context, f core.IncidentFilter) ([]core.TamperIncident, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+incidentColumns+`
		FROM tamper_incidents
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR severity = $2)
		ORDER BY created_at DESC
		LIMIT $3`, string(f.Status), string(f.Severity), f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.TamperIncident{}
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

func (s *IncidentStore) Stats(ctx context.Context) (core.IncidentStats, error) {
	var st core.IncidentStats
	err := s.pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE status = 'new'),
		       count(*) FILTER (WHERE status = 'acknowledged'),
		       count(*) FILTER (WHERE status = 'resolved')
		FROM tamper_incidents`).Scan(&st.Total, &st.Open, &st.Acknowledged, &st.Resolved)
	return st, err
}

func encodeIncidentDocs(inc *core.TamperIncident) (payload, events []byte, err error) {
	payload, err = json.Marshal(inc.VerificationPayload)
	if err != nil {
		return nil, nil, fmt.Errorf("encode verification payload: %w", err)
	}
	evs := inc.VerificationEvents
	if evs == nil {
		evs = []core.VerificationEvent{}
	}
	events, err = json.Marshal(evs)
	if err != nil {
		return nil, nil, fmt.Errorf("encode verification events: %w", err)
	}
	return payload, events, nil
}

func scanIncident(row pgx.Row) (core.TamperIncident, error) {
	var (
		inc            core.TamperIncident
		payload        []byte
		events         []byte
		acknowledgedAt pgtype.Timestamptz
		resolvedAt     pgtype.Timestamptz
	)
	err := row.Scan(
		&inc.ID, &inc.Status, &inc.Severity, &inc.VerificationStatus, &inc.Message, &inc.ContainmentActive,
		&inc.AffectedUserIDs, &inc.AuditLogIDs, &payload, &events,
		&inc.DetectedAt, &inc.LastSeenAt, &acknowledgedAt, &inc.AcknowledgedBy,
		&resolvedAt, &inc.ResolvedBy, &inc.ResolutionNotes,
		&inc.CreatedAt, &inc.UpdatedAt,
	)
	if err != nil {
		return inc, err
	}
	if err := json.Unmarshal(payload, &inc.VerificationPayload); err != nil {
		return inc, fmt.Errorf("decode verification payload of %s: %w", inc.ID, err)
	}
	if err := json.Unmarshal(events, &inc.VerificationEvents); err != nil {
		return inc, fmt.Errorf("decode verification events of %s: %w", inc.ID, err)
	}
	inc.AcknowledgedAt = timeFromTimestamptz(acknowledgedAt)
	inc.ResolvedAt = timeFromTimestamptz(resolvedAt)
	inc.DetectedAt = inc.DetectedAt.UTC()
	inc.LastSeenAt = inc.LastSeenAt.UTC()
	inc.CreatedAt = inc.CreatedAt.UTC()
	inc.UpdatedAt = inc.UpdatedAt.UTC()
	return inc, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
