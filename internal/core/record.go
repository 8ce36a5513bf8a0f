package core

import (
	"time"
)

// AuditRecord is a tamper-evident record of one sensitive mutation.
type AuditRecord struct {
	ID             string         `json:"id"`
	SubjectID      string         `json:"subjectId"`
	EventType      string         `json:"eventType"`
	FieldChanged   string         `json:"fieldChanged,omitempty"`
	OldValue       string         `json:"oldValue,omitempty"`
	NewValue       string         `json:"newValue,omitempty"`
	Role           string         `json:"role"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Hash           string         `json:"hash"`
	LedgerTxRef    string         `json:"ledgerTxRef,omitempty"`
	LedgerBlockRef *uint64        `json:"ledgerBlockRef,omitempty"`
	Verified       bool           `json:"verified"`
	VerifiedAt     *time.Time     `json:"verifiedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Anchored reports whether the ledger backlink has been written.
func (r *AuditRecord) Anchored() bool {
	return r.LedgerTxRef != ""
}

// HashFields returns the canonical hash inputs of the record.
func (r *AuditRecord) HashFields() HashInput {
	return HashInput{
		SubjectID:    r.SubjectID,
		EventType:    r.EventType,
		FieldChanged: r.FieldChanged,
		OldValue:     r.OldValue,
		NewValue:     r.NewValue,
		Role:         r.Role,
		Metadata:     r.Metadata,
		Timestamp:    r.CreatedAt,
	}
}

// VerifyHash recomputes the hash from the stored fields and compares it with
// the hash fixed at creation. A mismatch means the local copy was mutated.
func (r *AuditRecord) VerifyHash() bool {
	computed, err := ComputeHash(r.HashFields())
	if err != nil {
		return false
	}
	return computed == r.Hash
}

// NewAuditRecord builds a record for the given payload and fixes its hash.
func NewAuditRecord(in HashInput) (AuditRecord, error) {
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}
	in.Timestamp = in.Timestamp.UTC().Truncate(time.Millisecond)
	hash, err := ComputeHash(in)
	if err != nil {
		return AuditRecord{}, err
	}
	return AuditRecord{
		ID:           NewID(),
		SubjectID:    in.SubjectID,
		EventType:    in.EventType,
		FieldChanged: in.FieldChanged,
		OldValue:     in.OldValue,
		NewValue:     in.NewValue,
		Role:         in.Role,
		Metadata:     in.Metadata,
		Hash:         hash,
		CreatedAt:    in.Timestamp,
		UpdatedAt:    in.Timestamp,
	}, nil
}

// VerificationStats summarises the verification state of the record store.
type VerificationStats struct {
	Total      int64 `json:"total"`
	Verified   int64 `json:"verified"`
	Unverified int64 `json:"unverified"`
	NotLogged  int64 `json:"notLogged"`
}
