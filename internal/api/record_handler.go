package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lzjever/lgu-integrity/internal/auditlog"
	"github.com/lzjever/lgu-integrity/internal/core"
	"github.com/lzjever/lgu-integrity/internal/integrity"
)

type createRecordRequest struct {
	SubjectID    string         `json:"subjectId"`
	EventType    string         `json:"eventType"`
	FieldChanged string         `json:"fieldChanged"`
	OldValue     string         `json:"oldValue"`
	NewValue     string         `json:"newValue"`
	Role         string         `json:"role"`
	Metadata     map[string]any `json:"metadata"`
	Critical     bool           `json:"critical"`
}

// CreateRecord hashes and stores an audit record; anchoring happens in the
// background.
func (a *API) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		WriteError(w, appErr)
		return
	}
	if strings.TrimSpace(req.SubjectID) == "" || strings.TrimSpace(req.EventType) == "" {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "subjectId and eventType are required"))
		return
	}

	rec, err := a.writer.Write(r.Context(), auditlog.Entry{
		HashInput: core.HashInput{
			SubjectID:    req.SubjectID,
			EventType:    req.EventType,
			FieldChanged: req.FieldChanged,
			OldValue:     req.OldValue,
			NewValue:     req.NewValue,
			Role:         req.Role,
			Metadata:     req.Metadata,
		},
		Critical: req.Critical,
	})
	if err != nil {
		a.fail(w, err, "failed to create audit record")
		return
	}
	WriteSuccess(w, http.StatusCreated, map[string]interface{}{"record": rec})
}

func (a *API) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := a.records.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, core.ErrNotExist) {
		WriteError(w, core.NewAppError(core.ErrRecordNotFound, "Audit record not found"))
		return
	}
	if err != nil {
		a.fail(w, err, "failed to load audit record")
		return
	}
	WriteSuccess(w, http.StatusOK, map[string]interface{}{"record": rec})
}

// VerifyRecord verifies one record on demand and marks it verified when the
// ledger confirms it. No incident is raised here.
func (a *API) VerifyRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := a.records.Get(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, core.ErrNotExist) {
		WriteError(w, core.NewAppError(core.ErrRecordNotFound, "Audit record not found"))
		return
	}
	if err != nil {
		a.fail(w, err, "failed to load audit record")
		return
	}

	outcome, err := a.verifier.Verify(ctx, rec)
	if errors.Is(err, integrity.ErrOracleUnavailable) {
		WriteError(w, core.NewAppError(core.ErrLedgerUnavailable, "Blockchain service is not available"))
		return
	}
	if err != nil {
		a.fail(w, err, "verification failed")
		return
	}

	if outcome.OK() {
		now := time.Now().UTC()
		if err := a.records.MarkVerified(ctx, rec.ID, now); err != nil {
			a.fail(w, err, "failed to mark record verified")
			return
		}
		rec.Verified = true
		rec.VerifiedAt = &now
	}
	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"verification": outcome.Result(),
		"record":       rec,
	})
}

func (a *API) RecordStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.records.Stats(r.Context())
	if err != nil {
		a.fail(w, err, "failed to load verification stats")
		return
	}
	WriteSuccess(w, http.StatusOK, map[string]interface{}{"stats": stats})
}
