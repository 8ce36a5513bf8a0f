package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lzjever/lgu-integrity/internal/core"
)

// ErrLedgerRefSet is returned when a record already carries a ledger reference.
var ErrLedgerRefSet = errors.New("ledger reference already set")

const recordColumns = `id, subject_id, event_type, field_changed, old_value, new_value, role, metadata,
	hash, ledger_tx_ref, ledger_block_ref, verified, verified_at, created_at, updated_at`

// RecordStore keeps audit records in Postgres.
type RecordStore struct {
	pool *pgxpool.Pool
}

func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

func (s *RecordStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *RecordStore) Create(ctx context.Context, rec core.AuditRecord) error {
	var meta []byte
	if rec.Metadata != nil {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = b
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rec.ID, rec.SubjectID, rec.EventType, rec.FieldChanged, rec.OldValue, rec.NewValue, rec.Role, meta,
		rec.Hash, textFromString(rec.LedgerTxRef), int8FromPtr(rec.LedgerBlockRef), rec.Verified,
		timestamptzFromPtr(rec.VerifiedAt), rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

func (s *RecordStore) Get(ctx context.Context, id string) (*core.AuditRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM audit_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RecordStore) ListForVerification(ctx context.Context, since time.Time, limit int) ([]core.AuditRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM audit_records
		WHERE verified = false OR created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.AuditRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *RecordStore) MarkVerified(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE audit_records SET verified = true, verified_at = $2, updated_at = $2
		WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotExist
	}
	return nil
}

// SetLedgerRef writes the ledger backlink. It is written at most once.
func (s *RecordStore) SetLedgerRef(ctx context.Context, id, txHash string, blockNumber uint64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE audit_records SET ledger_tx_ref = $2, ledger_block_ref = $3, updated_at = now()
		WHERE id = $1 AND ledger_tx_ref IS NULL`, id, txHash, int64(blockNumber))
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM audit_records WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return core.ErrNotExist
	}
	return ErrLedgerRefSet
}

func (s *RecordStore) Stats(ctx context.Context) (core.VerificationStats, error) {
	var st core.VerificationStats
	err := s.pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE verified),
		       count(*) FILTER (WHERE NOT verified),
		       count(*) FILTER (WHERE ledger_tx_ref IS NULL)
		FROM audit_records`).Scan(&st.Total, &st.Verified, &st.Unverified, &st.NotLogged)
	return st, err
}

func scanRecord(row pgx.Row) (core.AuditRecord, error) {
	var (
		rec        core.AuditRecord
		meta       []byte
		txRef      pgtype.Text
		blockRef   pgtype.Int8
		verifiedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&rec.ID, &rec.SubjectID, &rec.EventType, &rec.FieldChanged, &rec.OldValue, &rec.NewValue, &rec.Role, &meta,
		&rec.Hash, &txRef, &blockRef, &rec.Verified, &verifiedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return rec, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return rec, fmt.Errorf("decode metadata of %s: %w", rec.ID, err)
		}
	}
	rec.LedgerTxRef = txRef.String
	if blockRef.Valid {
		b := uint64(blockRef.Int64)
		rec.LedgerBlockRef = &b
	}
	rec.VerifiedAt = timeFromTimestamptz(verifiedAt)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func textFromString(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func int8FromPtr(v *uint64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: int64(*v), Valid: true}
}

func timestamptzFromPtr(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timeFromTimestamptz(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
