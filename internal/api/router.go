package api

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lzjever/lgu-integrity/internal/anchor"
	"github.com/lzjever/lgu-integrity/internal/api/middleware"
	"github.com/lzjever/lgu-integrity/internal/auditlog"
	"github.com/lzjever/lgu-integrity/internal/core"
	"github.com/lzjever/lgu-integrity/internal/incident"
	"github.com/lzjever/lgu-integrity/internal/integrity"
)

// RecordStore is the read side of the audit record store used by the API.
type RecordStore interface {
	Get(ctx context.Context, id string) (*core.AuditRecord, error)
	MarkVerified(ctx context.Context, id string, at time.Time) error
	Stats(ctx context.Context) (core.VerificationStats, error)
	Ping(ctx context.Context) error
}

type QueueInspector interface {
	Status() anchor.Status
	Clear() int
}

type Deps struct {
	Incidents *incident.Service
	Records   RecordStore
	Writer    *auditlog.Writer
	Verifier  *integrity.Verifier
	Queue     QueueInspector
	Auth      middleware.AuthConfig
}

type API struct {
	incidents *incident.Service
	records   RecordStore
	writer    *auditlog.Writer
	verifier  *integrity.Verifier
	queue     QueueInspector
	auth      middleware.AuthConfig
	log       *zap.Logger
}

func NewAPI(d Deps, log *zap.Logger) *API {
	return &API{
		incidents: d.Incidents,
		records:   d.Records,
		writer:    d.Writer,
		verifier:  d.Verifier,
		queue:     d.Queue,
		auth:      d.Auth,
		log:       log,
	}
}

func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recoverer(a.log))
	r.Use(middleware.Logger(a.log))
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Health endpoints
	r.Get("/healthz", a.HealthHandler)
	r.Get("/readyz", a.ReadyHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireOperator(a.auth))

		// Incident triage
		r.Get("/incidents", a.ListIncidents)
		r.Get("/incidents/stats", a.IncidentStats)
		r.Get("/incidents/{id}", a.GetIncident)
		r.Post("/incidents/{id}/ack", a.AcknowledgeIncident)
		r.Post("/incidents/{id}/contain", a.ContainIncident)
		r.Post("/incidents/{id}/resolve", a.ResolveIncident)

		// Audit records
		r.Post("/audit-records", a.CreateRecord)
		r.Get("/audit-records/stats", a.RecordStats)
		r.Get("/audit-records/{id}", a.GetRecord)
		r.Post("/audit-records/{id}/verify", a.VerifyRecord)

		r.Get("/anchor-queue", a.QueueStatus)
		r.Delete("/anchor-queue", a.ClearQueue)
	})

	return r
}
