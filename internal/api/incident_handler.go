package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lzjever/lgu-integrity/internal/api/middleware"
	"github.com/lzjever/lgu-integrity/internal/auditlog"
	"github.com/lzjever/lgu-integrity/internal/core"
	"github.com/lzjever/lgu-integrity/internal/incident"
)

// IncidentSummary is the list view of an incident.
type IncidentSummary struct {
	ID                 string                  `json:"id"`
	Status             core.IncidentStatus     `json:"status"`
	Severity           core.Severity           `json:"severity"`
	VerificationStatus core.VerificationStatus `json:"verificationStatus"`
	Message            string                  `json:"message"`
	ContainmentActive  bool                    `json:"containmentActive"`
	AffectedUserIDs    []string                `json:"affectedUserIds"`
	AuditLogIDs        []string                `json:"auditLogIds"`
	DetectedAt         time.Time               `json:"detectedAt"`
	LastSeenAt         time.Time               `json:"lastSeenAt"`
	AcknowledgedAt     *time.Time              `json:"acknowledgedAt,omitempty"`
	ResolvedAt         *time.Time              `json:"resolvedAt,omitempty"`
	ResolutionNotes    string                  `json:"resolutionNotes,omitempty"`
}

func summarize(inc core.TamperIncident) IncidentSummary {
	return IncidentSummary{
		ID:                 inc.ID,
		Status:             inc.Status,
		Severity:           inc.Severity,
		VerificationStatus: inc.VerificationStatus,
		Message:            inc.Message,
		ContainmentActive:  inc.ContainmentActive,
		AffectedUserIDs:    inc.AffectedUserIDs,
		AuditLogIDs:        inc.AuditLogIDs,
		DetectedAt:         inc.DetectedAt,
		LastSeenAt:         inc.LastSeenAt,
		AcknowledgedAt:     inc.AcknowledgedAt,
		ResolvedAt:         inc.ResolvedAt,
		ResolutionNotes:    inc.ResolutionNotes,
	}
}

// ListIncidents lists incidents, newest first.
func (a *API) ListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	incidents, err := a.incidents.List(r.Context(), core.IncidentFilter{
		Status:   core.IncidentStatus(q.Get("status")),
		Severity: core.Severity(q.Get("severity")),
		Limit:    incident.ClampLimit(limit),
	})
	if err != nil {
		a.fail(w, err, "failed to list incidents")
		return
	}

	resp := make([]IncidentSummary, len(incidents))
	for i, inc := range incidents {
		resp[i] = summarize(inc)
	}
	WriteSuccess(w, http.StatusOK, map[string]interface{}{"incidents": resp})
}

func (a *API) IncidentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.incidents.Stats(r.Context())
	if err != nil {
		a.fail(w, err, "failed to load incident stats")
		return
	}
	WriteSuccess(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

// GetIncident returns the full incident, including its verification history.
func (a *API) GetIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := a.incidents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err, "failed to load incident")
		return
	}
	WriteSuccess(w, http.StatusOK, map[string]interface{}{"incident": inc})
}

type ackRequest struct {
	ContainmentActive *bool `json:"containmentActive"`
}

func (a *API) AcknowledgeIncident(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		WriteError(w, appErr)
		return
	}
	id := chi.URLParam(r, "id")
	operator := middleware.OperatorID(r.Context())

	inc, err := a.incidents.Acknowledge(r.Context(), id, operator, req.ContainmentActive)
	if err != nil {
		a.fail(w, err, "failed to acknowledge incident")
		return
	}
	a.auditAction(r.Context(), operator, "acknowledged", id, "")
	WriteSuccess(w, http.StatusOK, map[string]interface{}{"incident": inc})
}

type containRequest struct {
	ContainmentActive *bool `json:"containmentActive"`
}

// ContainIncident sets containment; an omitted value means true.
func (a *API) ContainIncident(w http.ResponseWriter, r *http.Request) {
	var req containRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		WriteError(w, appErr)
		return
	}
	active := true
	if req.ContainmentActive != nil {
		active = *req.ContainmentActive
	}
	id := chi.URLParam(r, "id")

	inc, err := a.incidents.SetContainment(r.Context(), id, active)
	if err != nil {
		a.fail(w, err, "failed to update containment")
		return
	}
	a.auditAction(r.Context(), middleware.OperatorID(r.Context()), "containment", id, "containmentActive="+strconv.FormatBool(active))
	WriteSuccess(w, http.StatusOK, map[string]interface{}{"incident": inc})
}

type resolveRequest struct {
	ResolutionNotes   string `json:"resolutionNotes"`
	ContainmentActive bool   `json:"containmentActive"`
}

func (a *API) ResolveIncident(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		WriteError(w, appErr)
		return
	}
	id := chi.URLParam(r, "id")
	operator := middleware.OperatorID(r.Context())

	inc, err := a.incidents.Resolve(r.Context(), id, operator, req.ResolutionNotes, req.ContainmentActive)
	if err != nil {
		a.fail(w, err, "failed to resolve incident")
		return
	}
	a.auditAction(r.Context(), operator, "resolved", id, req.ResolutionNotes)
	WriteSuccess(w, http.StatusOK, map[string]interface{}{"incident": inc})
}

// auditAction records an operator triage action as a security event. Failures
// are logged only.
func (a *API) auditAction(ctx context.Context, operator, action, incidentID, notes string) {
	if a.writer == nil {
		return
	}
	_, err := a.writer.Write(ctx, auditlog.Entry{HashInput: core.HashInput{
		SubjectID:    operator,
		EventType:    "security_event",
		FieldChanged: "tamper_incident",
		NewValue:     action + ":" + incidentID,
		Role:         a.auth.Role,
		Metadata:     map[string]any{"notes": notes},
	}})
	if err != nil {
		a.log.Warn("failed to audit operator action",
			zap.Error(err),
			zap.String("action", action),
			zap.String("incident_id", incidentID),
		)
	}
}
