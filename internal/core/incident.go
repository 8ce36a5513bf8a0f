package core

import "time"

type IncidentStatus string

const (
	IncidentNew          IncidentStatus = "new"
	IncidentAcknowledged IncidentStatus = "acknowledged"
	IncidentResolved     IncidentStatus = "resolved"
)

// Valid reports whether s is a known incident status.
func (s IncidentStatus) Valid() bool {
	switch s {
	case IncidentNew, IncidentAcknowledged, IncidentResolved:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// VerificationStatus is the tamper category assigned to a failed verification.
type VerificationStatus string

const (
	StatusTamperDetected    VerificationStatus = "tamper_detected"
	StatusVerificationError VerificationStatus = "verification_error"
	StatusNotLogged         VerificationStatus = "not_logged"
)

// VerificationPayload is the context captured for one failed verification.
type VerificationPayload struct {
	AuditLogID   string             `json:"auditLogId"`
	UserID       string             `json:"userId"`
	Hash         string             `json:"hash"`
	TxHash       string             `json:"txHash,omitempty"`
	BlockNumber  *uint64            `json:"blockNumber,omitempty"`
	Verification VerificationResult `json:"verification"`
}

// VerificationResult mirrors the verifier outcome stored with an incident.
type VerificationResult struct {
	Verified bool   `json:"verified"`
	Matches  bool   `json:"matches"`
	Error    string `json:"error,omitempty"`
}

type VerificationEvent struct {
	At      time.Time           `json:"at"`
	Payload VerificationPayload `json:"payload"`
}

// TamperIncident tracks one or more audit records that failed verification.
type TamperIncident struct {
	ID                  string              `json:"id"`
	Status              IncidentStatus      `json:"status"`
	Severity            Severity            `json:"severity"`
	VerificationStatus  VerificationStatus  `json:"verificationStatus"`
	Message             string              `json:"message"`
	ContainmentActive   bool                `json:"containmentActive"`
	AffectedUserIDs     []string            `json:"affectedUserIds"`
	AuditLogIDs         []string            `json:"auditLogIds"`
	VerificationPayload VerificationPayload `json:"verificationPayload"`
	VerificationEvents  []VerificationEvent `json:"verificationEvents"`
	DetectedAt          time.Time           `json:"detectedAt"`
	LastSeenAt          time.Time           `json:"lastSeenAt"`
	AcknowledgedAt      *time.Time          `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy      string              `json:"acknowledgedBy,omitempty"`
	ResolvedAt          *time.Time          `json:"resolvedAt,omitempty"`
	ResolvedBy          string              `json:"resolvedBy,omitempty"`
	ResolutionNotes     string              `json:"resolutionNotes,omitempty"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// IsOpen returns true until the incident is resolved.
func (i *TamperIncident) IsOpen() bool {
	return i.Status != IncidentResolved
}

// References reports whether the incident covers the given audit record.
func (i *TamperIncident) References(recordID string) bool {
	for _, id := range i.AuditLogIDs {
		if id == recordID {
			return true
		}
	}
	return false
}

// IncidentFilter narrows incident listings.
type IncidentFilter struct {
	Status   IncidentStatus
	Severity Severity
	Limit    int
}

// Matches reports whether the incident passes the filter (limit ignored).
func (f IncidentFilter) Matches(i *TamperIncident) bool {
	if f.Status != "" && i.Status != f.Status {
		return false
	}
	if f.Severity != "" && i.Severity != f.Severity {
		return false
	}
	return true
}

type IncidentStats struct {
	Total        int64 `json:"total"`
	Open         int64 `json:"open"`
	Acknowledged int64 `json:"acknowledged"`
	Resolved     int64 `json:"resolved"`
}

// Finding is a classified verification failure ready to be recorded as an
// incident.
type Finding struct {
	VerificationStatus VerificationStatus
	Severity           Severity
	ContainmentActive  bool
	Message            string
	Verification       VerificationResult
}
