package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lzjever/lgu-integrity/internal/core"
)

// MemoryRecordStore keeps audit records in process memory. It backs tests and
// local runs without a database.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]core.AuditRecord
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]core.AuditRecord)}
}

func (s *MemoryRecordStore) Ping(context.Context) error { return nil }

func (s *MemoryRecordStore) Create(_ context.Context, rec core.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("audit record %s already exists", rec.ID)
	}
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (s *MemoryRecordStore) Get(_ context.Context, id string) (*core.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, core.ErrNotExist
	}
	rec = cloneRecord(rec)
	return &rec, nil
}

func (s *MemoryRecordStore) ListForVerification(_ context.Context, since time.Time, limit int) ([]core.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.AuditRecord
	for _, rec := range s.records {
		if !rec.Verified || !rec.CreatedAt.Before(since) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerRecord(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryRecordStore) MarkVerified(_ context.Context, id string, at time.Time) error {
	return s.Update(id, func(rec *core.AuditRecord) {
		rec.Verified = true
		rec.VerifiedAt = &at
		rec.UpdatedAt = at
	})
}

func (s *MemoryRecordStore) SetLedgerRef(_ context.Context, id, txHash string, blockNumber uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return core.ErrNotExist
	}
	if rec.Anchored() {
		return ErrLedgerRefSet
	}
	rec.LedgerTxRef = txHash
	rec.LedgerBlockRef = &blockNumber
	rec.UpdatedAt = time.Now().UTC()
	s.records[id] = rec
	return nil
}

// Update applies fn to the stored record in place. The hash is not
// recomputed, so changing hashed fields makes the record fail verification.
func (s *MemoryRecordStore) Update(id string, fn func(*core.AuditRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return core.ErrNotExist
	}
	fn(&rec)
	s.records[id] = cloneRecord(rec)
	return nil
}

func (s *MemoryRecordStore) Stats(context.Context) (core.VerificationStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st core.VerificationStats
	for _, rec := range s.records {
		st.Total++
		if rec.Verified {
			st.Verified++
		} else {
			st.Unverified++
		}
		if !rec.Anchored() {
			st.NotLogged++
		}
	}
	return st, nil
}

// newerRecord orders by creation time, newest first, then by id.
func newerRecord(a, b core.AuditRecord) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func cloneRecord(rec core.AuditRecord) core.AuditRecord {
	if rec.Metadata != nil {
		m := make(map[string]any, len(rec.Metadata))
		for k, v := range rec.Metadata {
			m[k] = v
		}
		rec.Metadata = m
	}
	if rec.LedgerBlockRef != nil {
		b := *rec.LedgerBlockRef
		rec.LedgerBlockRef = &b
	}
	if rec.VerifiedAt != nil {
		t := *rec.VerifiedAt
		rec.VerifiedAt = &t
	}
	return rec
}

// MemoryIncidentStore keeps tamper incidents in process memory.
type MemoryIncidentStore struct {
	mu        sync.RWMutex
	incidents map[string]core.TamperIncident
}

func NewMemoryIncidentStore() *MemoryIncidentStore {
	return &MemoryIncidentStore{incidents: make(map[string]core.TamperIncident)}
}

func (s *MemoryIncidentStore) FindOpenByAuditRecord(_ context.Context, recordID string) (*core.TamperIncident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *core.TamperIncident
	for _, inc := range s.incidents {
		if !inc.IsOpen() || !inc.References(recordID) {
			continue
		}
		if found == nil || inc.CreatedAt.After(found.CreatedAt) {
			c := cloneIncident(inc)
			found = &c
		}
	}
	if found == nil {
		return nil, core.ErrNotExist
	}
	return found, nil
}

func (s *MemoryIncidentStore) Insert(_ context.Context, inc *core.TamperIncident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[inc.ID]; ok {
		return fmt.Errorf("incident %s already exists", inc.ID)
	}
	s.incidents[inc.ID] = cloneIncident(*inc)
	return nil
}

func (s *MemoryIncidentStore) Save(_ context.Context, inc *core.TamperIncident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[inc.ID]; !ok {
		return core.ErrNotExist
	}
	s.incidents[inc.ID] = cloneIncident(*inc)
	return nil
}

func (s *MemoryIncidentStore) Get(_ context.Context, id string) (*core.TamperIncident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	if !ok {
		return nil, core.ErrNotExist
	}
	c := cloneIncident(inc)
	return &c, nil
}

func (s *MemoryIncidentStore) List(_ context.Context, f core.IncidentFilter) ([]core.TamperIncident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.TamperIncident{}
	for _, inc := range s.incidents {
		if f.Matches(&inc) {
			out = append(out, cloneIncident(inc))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryIncidentStore) Stats(context.Context) (core.IncidentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st core.IncidentStats
	for _, inc := range s.incidents {
		st.Total++
		switch inc.Status {
		case core.IncidentNew:
			st.Open++
		case core.IncidentAcknowledged:
			st.Acknowledged++
		case core.IncidentResolved:
			st.Resolved++
		}
	}
	return st, nil
}

func cloneIncident(inc core.TamperIncident) core.TamperIncident {
	inc.AffectedUserIDs = append([]string(nil), inc.AffectedUserIDs...)
	inc.AuditLogIDs = append([]string(nil), inc.AuditLogIDs...)
	inc.VerificationEvents = append([]core.VerificationEvent(nil), inc.VerificationEvents...)
	if inc.AcknowledgedAt != nil {
		t := *inc.AcknowledgedAt
		inc.AcknowledgedAt = &t
	}
	if inc.ResolvedAt != nil {
		t := *inc.ResolvedAt
		inc.ResolvedAt = &t
	}
	return inc
}
